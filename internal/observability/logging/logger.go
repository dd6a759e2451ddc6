package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

// New builds a logger tagged with service. format "text" selects the
// logfmt-style handler for local runs; anything else logs JSON. CLI
// commands pass stderr so stdout stays free for command output and the
// MCP stdio transport.
func New(w io.Writer, service, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", service)
}

// Err groups an error message with its domain kind.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Group("error", "message", err.Error(), "kind", domain.Kind(err))
}

func parseLevel(level string) slog.Level {
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
