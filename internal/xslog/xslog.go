// Package xslog holds the slog attribute helpers and handler setup shared by
// the CLI, the MCP server and the page controller.
package xslog

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

const keyError = "error"

// New builds a text logger at the named level (debug, info, warn, error).
// Unknown levels fall back to info.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(keyError, "")
	}
	return slog.String(keyError, err.Error())
}

func Session(id string) slog.Attr {
	return slog.String("session", id)
}

func URL(u string) slog.Attr {
	return slog.String("url", u)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
