// Package log defines the public logging interface used across reducto packages.
package log

import (
	"context"
	"log/slog"
)

// Logger is the logging contract shared by the Store and its decorators.
// Callers may supply their own implementation through reducto.WithLogger;
// the default one is built on slog by internal/logger.
type Logger interface {
	// Debugf logs a formatted message at the DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs a formatted message at the INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs a formatted message at the WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs a formatted message at the ERROR level. When the last
	// argument is an error, implementations should log it as a structured field.
	Errorf(format string, args ...interface{})

	// Log logs a message at the given level with key-value attributes.
	Log(level slog.Level, msg string, args ...interface{})
	// LogCtx is Log with a context, so trace and span ids can be attached.
	LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{})

	// With returns a Logger that adds the given attributes to every entry.
	With(args ...interface{}) Logger
	// IsEnabled reports whether entries at level would be emitted.
	IsEnabled(level slog.Level) bool
}
