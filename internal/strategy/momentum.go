package strategy

import (
	"math"

	"otc-signalbot/internal/model"
)

// Momentum weights: the newest bar body counts 0.6, the one before 0.4.
const (
	weightLast = 0.6
	weightPrev = 0.4
)

// Volatility returns the mean high-low range of the last four bars.
// It returns 0 when the window is short.
func Volatility(bars []model.Bar) float64 {
	w := window(bars)
	if w == nil {
		return 0
	}
	var sum float64
	for _, b := range w {
		sum += b.Range()
	}
	return sum / float64(len(w))
}

// ScoreMomentum computes the weighted body momentum of the window.
// Direction is CALL when momentum > 0, else PUT; score = |momentum| * volatility.
func ScoreMomentum(bars []model.Bar) (float64, model.Direction, bool) {
	w := window(bars)
	if w == nil {
		return 0, model.DirectionNeutral, false
	}
	last, prev := w[len(w)-1], w[len(w)-2]
	momentum := weightLast*(last.Close-last.Open) + weightPrev*(prev.Close-prev.Open)

	dir := model.DirectionPut
	if momentum > 0 {
		dir = model.DirectionCall
	}
	return math.Abs(momentum) * Volatility(w), dir, true
}

// Momentum is the momentum-only policy.
type Momentum struct{}

func (Momentum) Name() string { return PolicyMomentum }

func (Momentum) Detect(bars []model.Bar) *model.Signal {
	score, dir, ok := ScoreMomentum(bars)
	if !ok {
		return nil
	}
	return &model.Signal{
		Direction:  dir,
		Price:      bars[len(bars)-1].Close,
		Score:      score,
		Volatility: Volatility(bars),
		Strategy:   PolicyMomentum,
	}
}

// ReversalWithMomentum tries the reversal pattern first and falls back to
// momentum when the window is not a same-direction run.
type ReversalWithMomentum struct{}

func (ReversalWithMomentum) Name() string { return PolicyReversalMomentum }

func (ReversalWithMomentum) Detect(bars []model.Bar) *model.Signal {
	if sig := (Reversal{}).Detect(bars); sig != nil {
		return sig
	}
	return Momentum{}.Detect(bars)
}
