// Package evaluator scores a delivered signal against the bars that follow
// it: one initial M1 trade and, if that loses, exactly one martingale retry
// at a raised stake.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"otc-signalbot/internal/logger"
	"otc-signalbot/internal/marketdata/barclock"
	"otc-signalbot/internal/model"
	"otc-signalbot/internal/notification"
	"otc-signalbot/internal/session"
)

// Messenger is where the evaluator sends the martingale and result messages
// and its journal line. *notification.FallbackSink satisfies it.
type Messenger interface {
	notification.Sink
	Journal(line string)
}

// Namer resolves instrument codes to display names. *model.Catalog satisfies it.
type Namer interface {
	Name(code string) string
}

// Config tunes the phase timing and the martingale step. Zero values are
// taken as given except where zero cannot work (BarPeriod, MartingaleFactor,
// MatchTolerance, FetchCount); start from DefaultConfig for production timing.
type Config struct {
	BarPeriod        time.Duration   // default 60s
	SettleMargin     time.Duration   // 0 scores right at the bar close
	MartingaleFactor decimal.Decimal // default 2.0
	MatchTolerance   time.Duration   // default BarPeriod
	FetchCount       int             // bars fetched per check, default 2

	Names  Namer
	Logger *slog.Logger
}

// DefaultConfig returns one-minute bars, a 5s settle margin and a 2x retry.
func DefaultConfig() Config {
	return Config{
		BarPeriod:        time.Minute,
		SettleMargin:     5 * time.Second,
		MartingaleFactor: decimal.NewFromInt(2),
		FetchCount:       2,
	}
}

func (c *Config) defaults() {
	if c.BarPeriod <= 0 {
		c.BarPeriod = time.Minute
	}
	if c.MartingaleFactor.IsZero() {
		c.MartingaleFactor = decimal.NewFromInt(2)
	}
	if c.MatchTolerance == 0 {
		c.MatchTolerance = c.BarPeriod
	}
	if c.FetchCount == 0 {
		c.FetchCount = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Evaluator runs outcome sequences. It is used from the scan goroutine only.
type Evaluator struct {
	source model.CandleSource
	sink   Messenger
	clock  barclock.Clock
	cfg    Config
	log    *slog.Logger

	// OnComplete, if set, observes every finished evaluation and its wall time.
	OnComplete func(ev model.Evaluation, took time.Duration)
}

// New creates an evaluator.
func New(source model.CandleSource, sink Messenger, clock barclock.Clock, cfg Config) *Evaluator {
	cfg.defaults()
	return &Evaluator{
		source: source,
		sink:   sink,
		clock:  clock,
		cfg:    cfg,
		log:    cfg.Logger.With(slog.String("component", "evaluator")),
	}
}

// Evaluate runs the sequence for sig and updates the session tally exactly
// once. If ctx is cancelled during a wait, the sequence is abandoned with
// ctx.Err() and the tally is left untouched.
func (e *Evaluator) Evaluate(ctx context.Context, sess *session.Session, sig model.Signal) (model.Evaluation, error) {
	ctx = logger.WithSequenceID(ctx, sig.ID)
	started := e.clock.Now()
	attrs := append(logger.Attrs(ctx), slog.String("instrument", sig.Instrument), slog.String("direction", string(sig.Direction)))

	sess.Begin(sig.Instrument)
	ev := model.Evaluation{Signal: sig}

	e.log.Info("phase 1: initial trade", append(attrs, slog.String("stake", sess.Stake().String()))...)
	first, err := e.runPhase(ctx, model.PhaseInitial, sess.Stake(), sig, e.clock.Now())
	if err != nil {
		sess.Abort()
		return ev, err
	}
	ev.Phases = append(ev.Phases, first)

	outcome := model.OutcomeInitialWin
	if !first.Won {
		stake := sess.EnterMartingale(e.cfg.MartingaleFactor)
		entry := e.clock.Now()
		e.log.Info("phase 2: martingale trade", append(attrs, slog.String("stake", stake.String()))...)

		msg := notification.FormatMartingale(e.name(sig.Instrument), sig.Direction, stake,
			barclock.NextBoundary(entry, e.cfg.BarPeriod))
		e.sink.Deliver(ctx, msg)

		second, err := e.runPhase(ctx, model.PhaseMartingale, stake, sig, entry)
		if err != nil {
			sess.Abort()
			return ev, err
		}
		ev.Phases = append(ev.Phases, second)

		outcome = model.OutcomeLoss
		if second.Won {
			outcome = model.OutcomeMartingaleWin
		}
	}

	tally := sess.Finish(outcome)
	ev.Outcome = outcome
	ev.Wins = tally.Wins
	ev.Losses = tally.Losses
	ev.CompletedAt = e.clock.Now()

	e.log.Info("sequence complete", append(attrs,
		slog.String("outcome", string(outcome)),
		slog.Int("wins", tally.Wins),
		slog.Int("losses", tally.Losses))...)

	e.sink.Deliver(ctx, notification.FormatResult(outcome, tally.Wins, tally.Losses))
	e.sink.Journal(notification.ResultLine(sig.Instrument, sig.Direction, outcome))

	if e.OnComplete != nil {
		e.OnComplete(ev, ev.CompletedAt.Sub(started))
	}
	return ev, nil
}

// runPhase waits for the bar entered at entry to close and scores it.
// A fetch failure or missing data scores as a loss; only ctx cancellation
// is returned as an error.
func (e *Evaluator) runPhase(ctx context.Context, phase model.Phase, stake decimal.Decimal, sig model.Signal, entry time.Time) (model.PhaseResult, error) {
	res := model.PhaseResult{Phase: phase, Stake: stake, EntryTS: entry.Unix()}

	if err := e.clock.Sleep(ctx, barclock.SettleWait(e.cfg.BarPeriod, e.cfg.SettleMargin)); err != nil {
		return res, err
	}

	bars, err := e.source.FetchBars(ctx, sig.Instrument, e.clock.Now(), e.cfg.FetchCount, e.cfg.BarPeriod)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		e.log.Error("failed to get candles", append(logger.Attrs(ctx),
			slog.String("instrument", sig.Instrument), slog.String("error", err.Error()))...)
		res.Error = fmt.Sprintf("fetch: %v", err)
		return res, nil
	}
	if len(bars) == 0 {
		e.log.Error("no candles to score", append(logger.Attrs(ctx), slog.String("instrument", sig.Instrument))...)
		res.Error = "no data"
		return res, nil
	}

	now := e.clock.Now()
	bar := MatchBar(bars, res.EntryTS, e.cfg.BarPeriod, e.cfg.MatchTolerance)
	if !barclock.Closed(bar.Start(), now, e.cfg.BarPeriod, 0) {
		e.log.Warn("scoring a bar that has not closed", append(logger.Attrs(ctx),
			slog.Int64("bar_ts", bar.Timestamp), slog.Int64("now", now.Unix()))...)
	}
	res.Bar = &bar
	res.Won = Wins(sig.Direction, bar)

	e.log.Info("candle scored", append(logger.Attrs(ctx),
		slog.String("phase", string(phase)),
		slog.Float64("open", bar.Open),
		slog.Float64("close", bar.Close),
		slog.Bool("won", res.Won))...)
	return res, nil
}

func (e *Evaluator) name(code string) string {
	if e.cfg.Names == nil {
		return code
	}
	return e.cfg.Names.Name(code)
}

// MatchBar picks the bar a trade entered at entryTS settles on: the bar whose
// interval contains entryTS, else the first bar within tolerance of entryTS,
// else the most recent bar. bars must be non-empty and ordered oldest first.
func MatchBar(bars []model.Bar, entryTS int64, period, tolerance time.Duration) model.Bar {
	for _, b := range bars {
		if b.Contains(entryTS, period) {
			return b
		}
	}
	tol := int64(tolerance / time.Second)
	for _, b := range bars {
		d := b.Timestamp - entryTS
		if d < 0 {
			d = -d
		}
		if d <= tol {
			return b
		}
	}
	return bars[len(bars)-1]
}

// Wins reports whether a trade in direction dir wins on bar. A bar that
// closes at its open loses in both directions.
func Wins(dir model.Direction, bar model.Bar) bool {
	switch dir {
	case model.DirectionCall:
		return bar.Close > bar.Open
	case model.DirectionPut:
		return bar.Close < bar.Open
	}
	return false
}
