package scanner

import (
	"context"
	"errors"

	"otc-signalbot/internal/model"
)

// MultiRecorder fans history out to several recorders. Every recorder is
// called even when an earlier one fails; the errors are joined.
type MultiRecorder []model.Recorder

func (m MultiRecorder) RecordSignal(ctx context.Context, sig model.Signal) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordSignal(ctx, sig); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordEvaluation(ctx context.Context, ev model.Evaluation) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordEvaluation(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
