// Package logging configures structured logging with log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	slogmulti "github.com/samber/slog-multi"
)

// Setup builds the process logger and installs it as the slog default. Console output is text or
// JSON depending on format; when file is set, a JSON copy of every record is appended to it.
// The returned cleanup closes the log file.
func Setup(level, format, file string) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	console := consoleHandler(os.Stdout, format, opts)

	if strings.TrimSpace(file) == "" {
		logger := slog.New(console)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(console)
		slog.SetDefault(logger)
		logger.Error("failed to open log file, using stdout only", "error", err, "file", file)
		return logger, func() error { return nil }
	}

	logger := slog.New(slogmulti.Fanout(console, slog.NewJSONHandler(f, opts)))
	slog.SetDefault(logger)
	return logger, f.Close
}

// New builds a logger writing to the given writers without touching the default logger.
func New(console, file io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if file == nil {
		return slog.New(consoleHandler(console, format, opts))
	}
	return slog.New(slogmulti.Fanout(consoleHandler(console, format, opts), slog.NewJSONHandler(file, opts)))
}

func consoleHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
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

// FromContext returns the default logger enriched with the chi request id, if any.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
