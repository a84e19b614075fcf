package model

import (
	"context"
	"time"
)

// ── Ports ──
// These interfaces decouple the scan/evaluation logic from the concrete
// market-data client and the history stores.

// CandleSource supplies ordered bars for an instrument.
type CandleSource interface {
	// FetchBars returns up to count bars ending at or before end, spaced by period,
	// newest last. A nil slice with a nil error means no data is available.
	FetchBars(ctx context.Context, instrument string, end time.Time, count int, period time.Duration) ([]Bar, error)
}

// Recorder keeps history of signals and their evaluations.
type Recorder interface {
	RecordSignal(ctx context.Context, sig Signal) error
	RecordEvaluation(ctx context.Context, ev Evaluation) error
}
