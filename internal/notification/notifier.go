// Package notification delivers signal and result messages to the chat
// channel, with an append-only local log so no message is ever lost.
package notification

import (
	"context"
	"log/slog"
)

// AlertLevel represents the severity of an operational alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is an operational notice (startup, connection loss), separate from
// the signal stream.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier sends operational alerts.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// TextSender posts a preformatted message to one channel.
type TextSender interface {
	SendText(ctx context.Context, text string) error
}

// Sink is what the scanner and the evaluator talk to. Deliver never panics
// and never blocks on a misconfigured channel; it reports whether the
// primary channel accepted the message.
type Sink interface {
	Deliver(ctx context.Context, text string) bool
}

// LogNotifier logs alerts instead of sending them (no chat configured).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	n.log.Log(ctx, levelFor(alert.Level), alert.Title, slog.String("message", alert.Message))
	return nil
}

func levelFor(l AlertLevel) slog.Level {
	switch l {
	case AlertWarning:
		return slog.LevelWarn
	case AlertCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
