package appconfig

import (
	"io"
	"log/slog"
	"strings"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/privacylog"
)

// NewLogger builds the process logger. Every handler is wrapped by the
// privacy sanitizer.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(c.Format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(privacylog.WrapHandler(handler))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
