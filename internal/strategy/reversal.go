package strategy

import "otc-signalbot/internal/model"

// DetectReversal checks the last four bars for a same-direction run.
// When all four are CALL (or all PUT) it returns the opposite direction and
// the last close. NEUTRAL bars and mixed runs produce no signal.
func DetectReversal(bars []model.Bar) (model.Direction, float64, bool) {
	w := window(bars)
	if w == nil {
		return model.DirectionNeutral, 0, false
	}

	first := w[0].Direction()
	if !first.Tradable() {
		return model.DirectionNeutral, 0, false
	}
	for _, b := range w[1:] {
		if b.Direction() != first {
			return model.DirectionNeutral, 0, false
		}
	}
	return first.Opposite(), w[len(w)-1].Close, true
}

// Reversal is the reversal-only policy.
type Reversal struct{}

func (Reversal) Name() string { return PolicyReversal }

func (Reversal) Detect(bars []model.Bar) *model.Signal {
	dir, price, ok := DetectReversal(bars)
	if !ok {
		return nil
	}
	return &model.Signal{
		Direction:  dir,
		Price:      price,
		Score:      ReversalScore,
		Volatility: Volatility(bars),
		Strategy:   PolicyReversal,
	}
}
