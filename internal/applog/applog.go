// Package applog configures sunsetr's structured logging.
//
// sunsetr logs via log/slog, the same library the teacher uses in
// internal/middleware.Logger and internal/cache.Cache — a text handler
// to stderr, key-value attributes, level gated by --debug.
package applog

import (
	"io"
	"log/slog"
)

// Setup installs a process-wide slog default logger and returns it.
// debug raises the level to Debug and adds source file:line to every
// record, matching spec §7: "--debug adds stack of contextual frames".
func Setup(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithKind returns a logger pre-populated with an error-kind attribute,
// used when surfacing the single structured failure line spec §7 asks
// for ("a single structured line per error with kind prefix").
func WithKind(logger *slog.Logger, kind string) *slog.Logger {
	return logger.With("kind", kind)
}
