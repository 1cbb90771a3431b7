// Package config resolves the bridge configuration from the process
// environment, an optional .env file and an optional YAML tuning file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/krishnadesk/bridge/internal/envvar"
	"github.com/krishnadesk/bridge/internal/xfs"
)

// ErrModelPathMissing is returned when MODEL_PATH is not set. Its text is
// part of the output contract with callers and must not be reworded.
var ErrModelPathMissing = errors.New("MODEL_PATH not found in .env file.")

// Config holds everything the bridge needs for one invocation. Values are
// resolved once in Load and never change afterwards.
type Config struct {
	// ModelPath is the GGUF model file, or a directory containing one.
	ModelPath string

	// LogLevel and LogFile configure the logger. An empty LogFile keeps all
	// logging on stderr.
	LogLevel string
	LogFile  string

	// Device selects the execution target: auto, cuda or cpu.
	Device string

	Engine     EngineConfig
	Generation GenerationConfig
	Reply      ReplyConfig
}

// EngineConfig configures the inference engine subprocess.
type EngineConfig struct {
	Binary  string `json:"binary,omitempty"  yaml:"binary,omitempty"`
	Threads int    `json:"threads,omitempty" yaml:"threads,omitempty"`
}

// GenerationConfig bounds a single generation.
type GenerationConfig struct {
	ContextSize  int `json:"context_size,omitempty"   yaml:"context_size,omitempty"`
	MaxNewTokens int `json:"max_new_tokens,omitempty" yaml:"max_new_tokens,omitempty"`
}

// ReplyConfig caps the size of the reply handed back to the agent.
type ReplyConfig struct {
	MaxWords int `json:"max_words,omitempty" yaml:"max_words,omitempty"`
	MaxChars int `json:"max_chars,omitempty" yaml:"max_chars,omitempty"`
}

// Load resolves the configuration. A .env file in the working directory is
// read first when present; real environment variables win over it. The
// optional tuning file pointed at by KRISHNA_CONFIG is applied last, except
// for the binary override, which always wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	modelPath := os.Getenv(envvar.ModelPath)
	if modelPath == "" {
		return nil, ErrModelPathMissing
	}
	cfg.ModelPath = xfs.ExpandTilde(modelPath)

	cfg.LogLevel = getEnv(envvar.KrishnaLogLevel, cfg.LogLevel)
	cfg.LogFile = os.Getenv(envvar.KrishnaLogFile)
	cfg.Device = getEnv(envvar.KrishnaDevice, cfg.Device)

	if path := os.Getenv(envvar.KrishnaConfig); path != "" {
		if err := cfg.applyTuningFile(xfs.ExpandTilde(path)); err != nil {
			return nil, fmt.Errorf("load tuning file: %w", err)
		}
	}

	if bin := os.Getenv(envvar.KrishnaLlamaBin); bin != "" {
		cfg.Engine.Binary = bin
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
