package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// FallbackSink delivers to the primary chat channel and falls back to the
// console and the signal log when the channel is missing or fails.
type FallbackSink struct {
	primary TextSender   // nil when no chat is configured
	mirrors []TextSender // best-effort copies (webhook)
	log     *FileLog
	out     io.Writer
	logger  *slog.Logger

	// OnFailure, if set, runs after each failed primary delivery (metrics).
	OnFailure func()
}

// NewFallbackSink builds a sink. primary may be nil.
func NewFallbackSink(primary TextSender, log *FileLog, logger *slog.Logger, mirrors ...TextSender) *FallbackSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSink{
		primary: primary,
		mirrors: mirrors,
		log:     log,
		out:     os.Stdout,
		logger:  logger,
	}
}

// SetOutput redirects the console copy written on fallback.
func (s *FallbackSink) SetOutput(w io.Writer) { s.out = w }

// Deliver sends text. With no primary channel the message goes to the
// console and the log and counts as delivered. A failing primary falls back
// the same way but reports false.
func (s *FallbackSink) Deliver(ctx context.Context, text string) bool {
	for _, m := range s.mirrors {
		if err := m.SendText(ctx, text); err != nil {
			s.logger.Warn("mirror delivery failed", slog.String("error", err.Error()))
		}
	}

	if s.primary == nil {
		s.fallback(text)
		return true
	}

	if err := s.primary.SendText(ctx, text); err != nil {
		s.logger.Error("failed to send telegram message", slog.String("error", err.Error()))
		if s.OnFailure != nil {
			s.OnFailure()
		}
		s.fallback(text)
		return false
	}
	s.logger.Info("message sent via telegram")
	return true
}

// Journal appends a plain line to the signal log.
func (s *FallbackSink) Journal(line string) {
	if s.log == nil {
		return
	}
	if err := s.log.Append(line); err != nil {
		s.logger.Error("failed to log signal", slog.String("error", err.Error()))
	}
}

func (s *FallbackSink) fallback(text string) {
	if s.out != nil {
		fmt.Fprintf(s.out, "\n%s\n\n", text)
	}
	s.Journal(text)
}
