package app

import (
	"io"
	"log/slog"
)

// newLogger builds a structured logger from the configured level and format.
// Unknown values fall back to info/text.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch formatStr {
	case "json":
		handler = slog.NewJSONHandler(outW, opts)
	default:
		handler = slog.NewTextHandler(outW, opts)
	}

	return slog.New(handler)
}
