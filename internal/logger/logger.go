// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context and carries an
// evaluation sequence ID through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const (
	sequenceIDKey ctxKey = "sequence_id"
	instrumentKey ctxKey = "instrument"
)

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps DEBUG, INFO, WARN (or WARNING) and ERROR to a slog level.
// Matching is case-insensitive; an empty string means INFO.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logger: unknown level %q", s)
}

// WithSequenceID tags the context with the ID of the signal being evaluated.
func WithSequenceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sequenceIDKey, id)
}

// SequenceID extracts the sequence ID from context. Returns "" if not set.
func SequenceID(ctx context.Context) string {
	if v, ok := ctx.Value(sequenceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithInstrument tags the context with the instrument being scanned.
func WithInstrument(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, instrumentKey, code)
}

// Attrs returns slog attributes for whatever is tagged on ctx.
// Usage: log.Info("msg", logger.Attrs(ctx)...)
func Attrs(ctx context.Context) []any {
	var attrs []any
	if v, ok := ctx.Value(instrumentKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("instrument", v))
	}
	if id := SequenceID(ctx); id != "" {
		attrs = append(attrs, slog.String("sequence_id", id))
	}
	return attrs
}
