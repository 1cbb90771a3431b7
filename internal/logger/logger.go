// Package logger builds the bridge's slog handlers.
//
// stdout carries the response contract, so handlers write to stderr or to an
// opt-in rotating file, never to stdout.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/krishnadesk/bridge/internal/env"
)

type options struct {
	level   slog.Level
	logFile string
	out     io.Writer
}

// Option configures New.
type Option func(*options)

// WithLevel sets the minimum level to log.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithLogFile routes log output into a rotating file at path instead of
// stderr. Rotation keeps the file from growing without bound when the bridge
// is invoked thousands of times a day.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// WithOutput overrides the default stderr writer. Tests use it to capture
// log output.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// New builds a logger for the given environment: a human-readable colored
// handler in development, structured JSON in production. A configured log
// file always receives JSON, whatever the environment.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := options{level: slog.LevelInfo, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logFile != "" {
		sink := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
		return slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: o.level}))
	}

	if environment == env.Development {
		return slog.New(tint.NewHandler(o.out, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
		}))
	}

	return slog.New(slog.NewJSONHandler(o.out, &slog.HandlerOptions{Level: o.level}))
}

// ParseLevel maps a level name to its slog.Level. Unknown names fall back to
// info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
