// Package barclock aligns waits to bar-close boundaries.
//
// All timing in the scan loop goes through a Clock so tests can drive bar
// closes deterministically instead of sleeping for a minute.
package barclock

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source and suspension point used by the scanner,
// the evaluator and the connection supervisor.
type Clock interface {
	Now() time.Time

	// Sleep suspends for d or until ctx is done. It returns ctx.Err() when
	// interrupted and nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BarStart returns the start of the bar containing t.
func BarStart(t time.Time, period time.Duration) time.Time {
	return t.Truncate(period)
}

// NextBoundary returns the start of the bar after the one containing t.
func NextBoundary(t time.Time, period time.Duration) time.Time {
	return BarStart(t, period).Add(period)
}

// SettleWait is how long an evaluation phase waits after entry: one full
// bar period plus the margin that absorbs feed latency.
func SettleWait(period, margin time.Duration) time.Duration {
	return period + margin
}

// Closed reports whether the bar starting at barStart has closed at now,
// allowing margin for the feed to publish the final values.
func Closed(barStart, now time.Time, period, margin time.Duration) bool {
	return !now.Before(barStart.Add(period + margin))
}

// Fake is a manual clock. Sleep advances the clock instantly and records the
// requested duration.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration

	// OnSleep, if set, runs after each Sleep advanced the clock.
	OnSleep func(d time.Duration)
}

// NewFake creates a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	hook := f.OnSleep
	f.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Advance moves the clock forward without recording a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Sleeps returns the recorded sleep durations in call order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
