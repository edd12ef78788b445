// Package logging builds the process logger and carries request-scoped
// loggers through a context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type contextKey string

const (
	ctxLogger        contextKey = "logger"
	ctxCorrelationID contextKey = "correlation_id"
)

// New returns a JSON slog logger writing to w at the named level.
// Unknown levels fall back to info.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
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

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLogger, l)
}

// FromContext returns the request logger, or slog.Default when none was set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxLogger).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithCorrelationID stores the request correlation id and a logger tagged
// with it.
func WithCorrelationID(ctx context.Context, base *slog.Logger, id string) context.Context {
	ctx = context.WithValue(ctx, ctxCorrelationID, id)
	return WithLogger(ctx, base.With("correlation_id", id))
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxCorrelationID).(string)
	return id
}
