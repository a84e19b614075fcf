// Package scanner walks the instrument catalog forever, one instrument at a
// time, and runs the outcome evaluation inline for every delivered signal.
// A single goroutine owns the session, so at most one evaluation is ever
// active.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"otc-signalbot/internal/evaluator"
	"otc-signalbot/internal/logger"
	"otc-signalbot/internal/marketdata/barclock"
	"otc-signalbot/internal/model"
	"otc-signalbot/internal/notification"
	"otc-signalbot/internal/session"
	"otc-signalbot/internal/strategy"
)

// Evaluator runs the outcome sequence of a delivered signal.
type Evaluator interface {
	Evaluate(ctx context.Context, sess *session.Session, sig model.Signal) (model.Evaluation, error)
}

// Supervisor makes sure the feed session is up before a fetch.
type Supervisor interface {
	Ensure(ctx context.Context) error
}

// Observer receives scan events (metrics). All methods must be cheap.
type Observer interface {
	SignalEmitted(sig model.Signal)
	EmptyFetch(instrument string)
	InstrumentFailed(instrument string, err error)
	CycleCompleted(took time.Duration)
}

// Deps are the collaborators of a Scanner. Recorder and Observer may be nil.
type Deps struct {
	Catalog    *model.Catalog
	Source     model.CandleSource
	Strategy   strategy.Strategy
	Evaluator  Evaluator
	Supervisor Supervisor
	Session    *session.Session
	Sink       evaluator.Messenger
	Recorder   model.Recorder
	Observer   Observer
	Clock      barclock.Clock
	Logger     *slog.Logger
}

// Config paces the loop. A zero pause means no pause; DefaultConfig holds
// the production pacing.
type Config struct {
	BarPeriod     time.Duration // default 60s
	MinVolatility float64       // signals with a smaller window volatility are dropped
	PairPause     time.Duration // after each instrument
	CyclePause    time.Duration // after each full pass
	ErrorPause    time.Duration // after a failed pass
}

// DefaultConfig paces 2s between instruments, 5s between passes and 10s
// after a failed pass.
func DefaultConfig() Config {
	return Config{
		BarPeriod:     time.Minute,
		MinVolatility: 0.00001,
		PairPause:     2 * time.Second,
		CyclePause:    5 * time.Second,
		ErrorPause:    10 * time.Second,
	}
}

func (c *Config) defaults() {
	if c.BarPeriod <= 0 {
		c.BarPeriod = time.Minute
	}
}

// Scanner is the scan loop.
type Scanner struct {
	d   Deps
	cfg Config
	log *slog.Logger
}

// New creates a scanner.
func New(d Deps, cfg Config) *Scanner {
	cfg.defaults()
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Clock == nil {
		d.Clock = barclock.Real{}
	}
	return &Scanner{
		d:   d,
		cfg: cfg,
		log: d.Logger.With(slog.String("component", "scanner")),
	}
}

// Run scans until ctx is cancelled and then returns nil. A failing pass is
// logged and retried after ErrorPause.
func (s *Scanner) Run(ctx context.Context) error {
	s.log.Info("scan loop started",
		slog.Int("instruments", s.d.Catalog.Len()),
		slog.String("strategy", s.d.Strategy.Name()))

	for {
		if ctx.Err() != nil {
			return nil
		}

		pause := s.cfg.CyclePause
		if err := s.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("scan cycle failed", slog.String("error", err.Error()))
			pause = s.cfg.ErrorPause
		}

		if err := s.d.Clock.Sleep(ctx, pause); err != nil {
			return nil
		}
	}
}

func (s *Scanner) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner: cycle panic: %v", r)
			s.log.Error("recovered panic in scan cycle", slog.String("stack", string(debug.Stack())))
		}
	}()
	return s.RunCycle(ctx)
}

// RunCycle scans every instrument once, in catalog order. Instrument
// failures are logged and skipped; only ctx cancellation ends it early.
func (s *Scanner) RunCycle(ctx context.Context) error {
	started := s.d.Clock.Now()

	for _, inst := range s.d.Catalog.Instruments() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.safeScan(ctx, inst); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.log.Error("error scanning instrument",
				slog.String("instrument", inst.Code),
				slog.String("error", err.Error()))
			s.d.Observer.InstrumentFailed(inst.Code, err)
		}

		if err := s.d.Clock.Sleep(ctx, s.cfg.PairPause); err != nil {
			return err
		}
	}

	s.d.Observer.CycleCompleted(s.d.Clock.Now().Sub(started))
	return nil
}

func (s *Scanner) safeScan(ctx context.Context, inst model.Instrument) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner: panic scanning %s: %v", inst.Code, r)
		}
	}()
	return s.ScanInstrument(ctx, inst)
}

// ScanInstrument fetches the latest window for inst, and if the strategy
// fires and the signal is delivered, evaluates it before returning.
func (s *Scanner) ScanInstrument(ctx context.Context, inst model.Instrument) error {
	ctx = logger.WithInstrument(ctx, inst.Code)

	if s.d.Supervisor != nil {
		if err := s.d.Supervisor.Ensure(ctx); err != nil {
			return fmt.Errorf("scanner: ensure connection: %w", err)
		}
	}

	now := s.d.Clock.Now()
	bars, err := s.d.Source.FetchBars(ctx, inst.Code, now, strategy.WindowSize, s.cfg.BarPeriod)
	if err != nil {
		return fmt.Errorf("scanner: fetch %s: %w", inst.Code, err)
	}
	if len(bars) == 0 {
		s.log.Info("no signal: no candle data", logger.Attrs(ctx)...)
		s.d.Observer.EmptyFetch(inst.Code)
		return nil
	}

	sig := s.d.Strategy.Detect(bars)
	if sig == nil {
		s.log.Debug("no signal", logger.Attrs(ctx)...)
		return nil
	}
	if sig.Volatility < s.cfg.MinVolatility {
		s.log.Debug("signal dropped: low volatility", append(logger.Attrs(ctx),
			slog.Float64("volatility", sig.Volatility))...)
		return nil
	}
	strategy.Stamp(sig, inst.Code, now)
	s.d.Observer.SignalEmitted(*sig)

	s.log.Info("signal detected", append(logger.Attrs(ctx),
		slog.String("direction", string(sig.Direction)),
		slog.Float64("price", sig.Price),
		slog.Float64("score", sig.Score),
		slog.String("strategy", sig.Strategy))...)

	msg := notification.FormatSignal(inst.DisplayName(), sig.Direction, sig.Price,
		barclock.NextBoundary(now, s.cfg.BarPeriod))
	if !s.d.Sink.Deliver(ctx, msg) {
		s.log.Warn("signal not delivered, skipping evaluation", logger.Attrs(ctx)...)
		return nil
	}
	s.d.Sink.Journal(notification.SignalLine(inst.Code, sig.Direction, sig.Price))

	if s.d.Recorder != nil {
		if err := s.d.Recorder.RecordSignal(ctx, *sig); err != nil {
			s.log.Warn("failed to record signal", append(logger.Attrs(ctx), slog.String("error", err.Error()))...)
		}
	}

	ev, err := s.d.Evaluator.Evaluate(ctx, s.d.Session, *sig)
	if err != nil {
		return fmt.Errorf("scanner: evaluate %s: %w", inst.Code, err)
	}

	if s.d.Recorder != nil {
		if err := s.d.Recorder.RecordEvaluation(ctx, ev); err != nil {
			s.log.Warn("failed to record evaluation", append(logger.Attrs(ctx), slog.String("error", err.Error()))...)
		}
	}
	return nil
}

type nopObserver struct{}

func (nopObserver) SignalEmitted(model.Signal)     {}
func (nopObserver) EmptyFetch(string)              {}
func (nopObserver) InstrumentFailed(string, error) {}
func (nopObserver) CycleCompleted(time.Duration)   {}
