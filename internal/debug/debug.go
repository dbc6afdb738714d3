// Package debug carries debug mode in the context and configures slog.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const debugKey contextKey = "debug_enabled"

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(debugKey).(bool); ok {
		return v
	}
	return false
}

// SetupLogger installs the default logger on stderr: Debug level when
// debugEnabled, Warn otherwise.
func SetupLogger(debugEnabled bool) *slog.Logger {
	return SetupLoggerTo(os.Stderr, debugEnabled, false)
}

// SetupLoggerTo is SetupLogger with an explicit writer and an optional JSON
// handler for long-running watch sessions whose logs are shipped elsewhere.
func SetupLoggerTo(w io.Writer, debugEnabled, jsonFormat bool) *slog.Logger {
	level := slog.LevelWarn
	if debugEnabled {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
