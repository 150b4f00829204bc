package ivarray

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with ivarray-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithArray tags every record with the array name.
func (l *Logger) WithArray(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("array", name),
	}
}

// LogOpen logs Build and Open.
func (l *Logger) LogOpen(ctx context.Context, path string, build bool, capacity, keys uint32, err error) {
	mode := "open"
	if build {
		mode = "build"
	}
	if err != nil {
		l.ErrorContext(ctx, "initialization failed",
			"mode", mode,
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "array ready",
			"mode", mode,
			"path", path,
			"capacity", capacity,
			"keys", keys,
		)
	}
}

// LogSave logs a Save pass.
func (l *Logger) LogSave(ctx context.Context, flushed int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"flushed", flushed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "save completed",
			"flushed", flushed,
			"duration", duration,
		)
	}
}

// LogEviction logs a cache eviction.
func (l *Logger) LogEviction(ctx context.Context, key uint32, bytes int, writeBack bool) {
	l.DebugContext(ctx, "evicted",
		"key", key,
		"bytes", bytes,
		"write_back", writeBack,
	)
}

// LogGrow logs a capacity growth.
func (l *Logger) LogGrow(ctx context.Context, oldCapacity, newCapacity uint32) {
	l.InfoContext(ctx, "capacity grown",
		"old", oldCapacity,
		"new", newCapacity,
	)
}

// LogPreload logs a preload pass.
func (l *Logger) LogPreload(ctx context.Context, keys int, bytes uint64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "preload failed",
			"keys", keys,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "preload completed",
			"keys", keys,
			"bytes", bytes,
			"duration", duration,
		)
	}
}

// LogClose logs Close. Unsaved changes are discarded and reported as a
// warning.
func (l *Logger) LogClose(ctx context.Context, unsaved int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "close failed",
			"error", err,
		)
	case unsaved > 0:
		l.WarnContext(ctx, "closed with unsaved changes",
			"dirty", unsaved,
		)
	default:
		l.DebugContext(ctx, "closed")
	}
}
