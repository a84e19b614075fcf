package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// alertTimeout bounds one alert delivery started from a callback.
const alertTimeout = 10 * time.Second

// MultiNotifier sends every alert to all of its notifiers. Each one is tried
// even when an earlier one fails; the errors are joined.
type MultiNotifier []Notifier

func (m MultiNotifier) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AlertOnError returns a callback that raises err as an alert. Failed
// deliveries are logged and otherwise dropped.
func AlertOnError(n Notifier, level AlertLevel, title string, log *slog.Logger) func(error) {
	if log == nil {
		log = slog.Default()
	}
	return func(err error) {
		if err == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if sendErr := n.Send(ctx, Alert{Level: level, Title: title, Message: err.Error()}); sendErr != nil {
			log.Warn("alert delivery failed",
				slog.String("title", title),
				slog.String("error", sendErr.Error()))
		}
	}
}
