// Package logger provides structured logging setup for AgentDeck.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Strob0t/AgentDeck/internal/config"
)

// New creates a *slog.Logger from the given Logging config and a Closer
// that flushes pending records on shutdown.
//
// Output goes to stdout: human-readable text when stdout is a terminal,
// JSON otherwise. With cfg.Async the handler is wrapped in an
// AsyncHandler so high-volume paths (runner stream noise, PTY errors)
// never block on slow log sinks.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stdout.Fd())) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	if !cfg.Async {
		return slog.New(handler), nopCloser{}
	}

	async := NewAsyncHandler(handler, 1024, 2)
	return slog.New(async), async
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
