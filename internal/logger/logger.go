package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const envProd = "prod"

// ParseLevel maps a config level name to slog; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// New builds a JSON logger for prod and a text logger everywhere else.
func New(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if env == envProd {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("env", env)
}

// Setup installs the logger as slog's default, so package-level slog calls use it.
func Setup(env, level string) *slog.Logger {
	l := New(os.Stdout, env, level)
	slog.SetDefault(l)
	return l
}
