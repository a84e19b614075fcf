// Package strategy turns a short window of bars into an optional trade signal.
//
// Two detectors exist: the four-bar reversal pattern and a weighted momentum
// scorer. A Strategy wraps one detection policy; the scanner runs exactly one
// Strategy per process.
package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"otc-signalbot/internal/model"
)

// WindowSize is the number of bars every detector inspects.
const WindowSize = 4

// ReversalScore is the sentinel score attached to reversal signals so they
// always outrank momentum signals.
const ReversalScore = 100.0

// Policy names accepted by New.
const (
	PolicyReversal         = "reversal"
	PolicyMomentum         = "momentum"
	PolicyReversalMomentum = "reversal_momentum"
)

// ErrUnknownStrategy is returned by New for an unrecognised policy name.
var ErrUnknownStrategy = errors.New("strategy: unknown policy")

// Strategy produces an optional signal from a bar window ordered oldest→newest.
type Strategy interface {
	// Name returns the policy name.
	Name() string

	// Detect returns a signal or nil. Instrument and time are filled in by the caller.
	Detect(bars []model.Bar) *model.Signal
}

// New builds the Strategy for a policy name.
func New(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyReversal:
		return Reversal{}, nil
	case PolicyMomentum:
		return Momentum{}, nil
	case PolicyReversalMomentum, "":
		return ReversalWithMomentum{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Stamp fills the identity fields of a detected signal.
func Stamp(sig *model.Signal, instrument string, now time.Time) {
	sig.ID = uuid.NewString()
	sig.Instrument = instrument
	sig.DetectedAt = now
}

// window returns the last WindowSize bars, or nil when there are fewer.
func window(bars []model.Bar) []model.Bar {
	if len(bars) < WindowSize {
		return nil
	}
	return bars[len(bars)-WindowSize:]
}
