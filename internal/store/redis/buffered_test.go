package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"otc-signalbot/internal/model"
)

type flakyRecorder struct {
	mu      sync.Mutex
	down    bool
	signals []string
	evals   []string
}

func (f *flakyRecorder) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *flakyRecorder) RecordSignal(_ context.Context, sig model.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errors.New("connection refused")
	}
	f.signals = append(f.signals, sig.ID)
	return nil
}

func (f *flakyRecorder) RecordEvaluation(_ context.Context, ev model.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errors.New("connection refused")
	}
	f.evals = append(f.evals, ev.Signal.ID)
	return nil
}

func TestBufferedPublisher_PassThrough(t *testing.T) {
	rec := &flakyRecorder{}
	cb, _ := newTestBreaker(2, time.Second)
	bp := NewBufferedPublisher(rec, cb, 10)

	if err := bp.RecordSignal(context.Background(), model.Signal{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := bp.RecordEvaluation(context.Background(), model.Evaluation{Signal: model.Signal{ID: "a"}}); err != nil {
		t.Fatal(err)
	}
	if len(rec.signals) != 1 || len(rec.evals) != 1 || bp.PendingCount() != 0 {
		t.Errorf("expected direct writes, got %+v pending=%d", rec, bp.PendingCount())
	}
}

func TestBufferedPublisher_BuffersWhileOpen(t *testing.T) {
	rec := &flakyRecorder{down: true}
	cb, clock := newTestBreaker(1, time.Second)
	bp := NewBufferedPublisher(rec, cb, 10)
	buffered := 0
	bp.OnBuffer = func() { buffered++ }
	ctx := context.Background()

	if err := bp.RecordSignal(ctx, model.Signal{ID: "a"}); err == nil {
		t.Fatal("first failure should surface")
	}
	if err := bp.RecordSignal(ctx, model.Signal{ID: "b"}); err != nil {
		t.Fatalf("open breaker should buffer, got %v", err)
	}
	bp.RecordEvaluation(ctx, model.Evaluation{Signal: model.Signal{ID: "b"}})
	if bp.PendingCount() != 2 || buffered != 2 {
		t.Fatalf("expected 2 buffered, got %d (callback %d)", bp.PendingCount(), buffered)
	}

	replayed, pendingAfter := -1, -1
	bp.OnFlush = func(n int) { replayed, pendingAfter = n, bp.PendingCount() }

	rec.setDown(false)
	clock.advance(time.Second)
	n := bp.Flush(ctx)
	if n != 2 || replayed != 2 || pendingAfter != 0 {
		t.Errorf("expected 2 replayed and none pending, got %d (callback %d, pending %d)", n, replayed, pendingAfter)
	}
	if len(rec.signals) != 1 || rec.signals[0] != "b" || len(rec.evals) != 1 {
		t.Errorf("unexpected replay %+v", rec)
	}
}

func TestBufferedPublisher_DropsOldestWhenFull(t *testing.T) {
	rec := &flakyRecorder{down: true}
	cb, _ := newTestBreaker(1, time.Hour)
	bp := NewBufferedPublisher(rec, cb, 2)
	ctx := context.Background()

	bp.RecordSignal(ctx, model.Signal{ID: "trip"})
	for _, id := range []string{"x", "y", "z"} {
		bp.RecordSignal(ctx, model.Signal{ID: id})
	}
	rec.setDown(false)
	bp.Flush(ctx)

	if len(rec.signals) != 2 || rec.signals[0] != "y" || rec.signals[1] != "z" {
		t.Errorf("expected newest two kept, got %v", rec.signals)
	}
}

func TestStreamValuesAndTally(t *testing.T) {
	ev := model.Evaluation{
		Signal:      model.Signal{ID: "s", Instrument: "BA_otc", Direction: model.DirectionPut},
		Outcome:     model.OutcomeMartingaleWin,
		Wins:        4,
		Losses:      1,
		CompletedAt: time.Unix(1_700_000_000, 0),
	}
	v := streamValues(ev, ev.JSON())
	if v["outcome"] != "MARTINGALE_WIN" || v["instrument"] != "BA_otc" || v["direction"] != "PUT" {
		t.Errorf("unexpected stream values %v", v)
	}
	f := tallyFields(ev)
	if f["wins"] != 4 || f["losses"] != 1 || f["updated_at"] != int64(1_700_000_000) {
		t.Errorf("unexpected tally fields %v", f)
	}
}
