package redis

import (
	"context"
	"errors"
	"log"
	"sync"

	"otc-signalbot/internal/model"
)

type pendingKind int

const (
	pendingSignal pendingKind = iota
	pendingEvaluation
)

type pending struct {
	kind pendingKind
	sig  model.Signal
	ev   model.Evaluation
}

// BufferedPublisher wraps a recorder with a circuit breaker. While the
// breaker is open, records are kept in a bounded local buffer (oldest dropped
// first) and replayed once the breaker closes or on Close.
type BufferedPublisher struct {
	next model.Recorder
	cb   *CircuitBreaker

	mu     sync.Mutex
	buffer []pending
	maxBuf int

	// OnBuffer, if set, is called for every buffered record (metrics).
	OnBuffer func()
	// OnFlush, if set, is called after a replay with the number replayed.
	OnFlush func(count int)

	flushMu sync.Mutex
}

// NewBufferedPublisher wraps next. maxBufferSize <= 0 means 1000.
func NewBufferedPublisher(next model.Recorder, cb *CircuitBreaker, maxBufferSize int) *BufferedPublisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 1000
	}
	bp := &BufferedPublisher{
		next:   next,
		cb:     cb,
		maxBuf: maxBufferSize,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bp.Flush(context.Background())
		}
	}
	return bp
}

// RecordSignal publishes or buffers sig.
func (bp *BufferedPublisher) RecordSignal(ctx context.Context, sig model.Signal) error {
	err := bp.cb.Execute(func() error { return bp.next.RecordSignal(ctx, sig) })
	if errors.Is(err, ErrCircuitOpen) {
		bp.push(pending{kind: pendingSignal, sig: sig})
		return nil
	}
	return err
}

// RecordEvaluation publishes or buffers ev.
func (bp *BufferedPublisher) RecordEvaluation(ctx context.Context, ev model.Evaluation) error {
	err := bp.cb.Execute(func() error { return bp.next.RecordEvaluation(ctx, ev) })
	if errors.Is(err, ErrCircuitOpen) {
		bp.push(pending{kind: pendingEvaluation, ev: ev})
		return nil
	}
	return err
}

func (bp *BufferedPublisher) push(p pending) {
	bp.mu.Lock()
	if len(bp.buffer) >= bp.maxBuf {
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, p)
	bp.mu.Unlock()

	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// Flush replays buffered records in order, straight to the wrapped recorder.
// Records that fail again are dropped and logged.
func (bp *BufferedPublisher) Flush(ctx context.Context) int {
	bp.flushMu.Lock()
	defer bp.flushMu.Unlock()

	bp.mu.Lock()
	toFlush := bp.buffer
	bp.buffer = nil
	bp.mu.Unlock()
	if len(toFlush) == 0 {
		return 0
	}

	flushed := 0
	for _, p := range toFlush {
		var err error
		switch p.kind {
		case pendingSignal:
			err = bp.next.RecordSignal(ctx, p.sig)
		case pendingEvaluation:
			err = bp.next.RecordEvaluation(ctx, p.ev)
		}
		if err != nil {
			log.Printf("[redis-buffer] replay failed: %v", err)
			continue
		}
		flushed++
	}

	log.Printf("[redis-buffer] flushed %d of %d buffered records", flushed, len(toFlush))
	if bp.OnFlush != nil {
		bp.OnFlush(flushed)
	}
	return flushed
}

// PendingCount returns the number of buffered records.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}
