// Copyright 2025 TrustWrapper Authors
//
// Package logging provides the structured logger shared by every pipeline
// stage, wrapping log/slog the way the lite client's logging package does.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Config selects the logger's level, format, and destination.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	Output    string // "stdout", "stderr", or a file path
	AddSource bool
}

// DefaultConfig returns a text logger on stdout at Info level.
func DefaultConfig() *Config {
	return &Config{
		Level:  slog.LevelInfo,
		Format: "text",
		Output: "stdout",
	}
}

// Logger wraps slog.Logger; stages receive one via corectx.Context rather
// than a package-level global.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from Config, defaulting to DefaultConfig when cfg is
// nil.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		output = f
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler)}, nil
}

// Noop returns a Logger that discards all output, for tests that do not
// want to assert on log content.
func Noop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a Logger with the given key/value pairs attached to every
// subsequent record.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
