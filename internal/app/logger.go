package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger. JSON output is used
// whenever LOG_FORMAT=json, otherwise a human-readable text handler.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.AppEnv == "development" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
