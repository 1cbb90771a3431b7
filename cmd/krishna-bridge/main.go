// Command krishna-bridge reads one support-agent message as JSON on stdin,
// asks a locally stored language model for Krishna's reply, and prints a
// single JSON object on stdout.
//
// A response object, {"response": ..., "escalate": ...}, exits 0 even when
// it carries the escalation apology. An {"error": ...} object exits 1.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/krishnadesk/bridge/internal/bridge"
	"github.com/krishnadesk/bridge/internal/config"
	"github.com/krishnadesk/bridge/internal/device"
	"github.com/krishnadesk/bridge/internal/engine/llamacpp"
	"github.com/krishnadesk/bridge/internal/env"
	"github.com/krishnadesk/bridge/internal/logger"
	"github.com/krishnadesk/bridge/internal/model"
	"github.com/krishnadesk/bridge/internal/responder"
)

func main() {
	os.Exit(run())
}

// run keeps the work out of main so deferred cleanup survives the exit.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		bridge.WriteError(os.Stdout, err.Error())
		return bridge.ExitError
	}

	logOpts := []logger.Option{logger.WithLevel(logger.ParseLevel(cfg.LogLevel))}
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logger.WithLogFile(cfg.LogFile))
	}
	slog.SetDefault(logger.New(env.FromEnv(), logOpts...))

	info, err := model.Load(cfg.ModelPath)
	if err != nil {
		slog.Error("Model load failed", "path", cfg.ModelPath, "error", err)

		// The not-found message is user-facing as is; everything else gets
		// the load failure prefix.
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			bridge.WriteError(os.Stdout, err.Error())
		} else {
			bridge.WriteError(os.Stdout, fmt.Sprintf("Failed to load model: %v", err))
		}
		return bridge.ExitError
	}

	target := device.Detect(cfg.Device)
	slog.Info("Model loaded",
		"model", info.Name,
		"arch", info.Architecture,
		"path", info.Path,
		"context_length", info.ContextLength,
		"eos_token_id", info.EOSTokenID,
		"pad_token_id", info.PadTokenID,
		"device", target.Kind,
	)

	eng, err := llamacpp.New(cfg.Engine.Binary, info.Path, target)
	if err != nil {
		slog.Error("Engine setup failed", "binary", cfg.Engine.Binary, "error", err)
		bridge.WriteError(os.Stdout, fmt.Sprintf("Failed to load model: %v", err))
		return bridge.ExitError
	}

	b := bridge.New(responder.New(eng, info, cfg), os.Stdout, func() {
		if err := eng.Close(); err != nil {
			slog.Debug("Engine close failed", "error", err)
		}
	})

	return b.Run(context.Background(), os.Stdin)
}
