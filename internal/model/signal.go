package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Signal is a directional call produced by a detection strategy.
// It lives for one scan iteration; only the journal keeps it afterwards.
type Signal struct {
	ID         string    `json:"id"`
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"` // CALL or PUT only
	Price      float64   `json:"price"`     // last close of the window
	Score      float64   `json:"score"`
	Volatility float64   `json:"volatility"` // mean high-low of the window
	Strategy   string    `json:"strategy"`
	DetectedAt time.Time `json:"detected_at"`
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Phase is a step of the outcome evaluation.
type Phase string

const (
	PhaseInitial    Phase = "INITIAL"
	PhaseMartingale Phase = "MARTINGALE"
)

// Outcome is the terminal result of an evaluation.
type Outcome string

const (
	OutcomeInitialWin    Outcome = "INITIAL_WIN"
	OutcomeMartingaleWin Outcome = "MARTINGALE_WIN"
	OutcomeLoss          Outcome = "LOSS"
)

// Won reports whether the outcome counts as a win in the tally.
func (o Outcome) Won() bool {
	return o == OutcomeInitialWin || o == OutcomeMartingaleWin
}

// Label is the short form used in journal lines.
func (o Outcome) Label() string {
	switch o {
	case OutcomeInitialWin:
		return "WIN"
	case OutcomeMartingaleWin:
		return "MTG WIN"
	default:
		return "LOSS"
	}
}

// PhaseResult records how one phase was scored.
type PhaseResult struct {
	Phase   Phase           `json:"phase"`
	Stake   decimal.Decimal `json:"stake"`
	EntryTS int64           `json:"entry_ts"`
	Bar     *Bar            `json:"bar,omitempty"` // nil when no data was available
	Won     bool            `json:"won"`
	Error   string          `json:"error,omitempty"`
}

// Evaluation is the terminal record of one signal's outcome sequence.
type Evaluation struct {
	Signal      Signal        `json:"signal"`
	Outcome     Outcome       `json:"outcome"`
	Phases      []PhaseResult `json:"phases"`
	Wins        int           `json:"wins"`   // tally after this evaluation
	Losses      int           `json:"losses"` // tally after this evaluation
	CompletedAt time.Time     `json:"completed_at"`
}

// JSON returns the JSON-encoded evaluation.
func (e *Evaluation) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// FinalStake returns the stake of the last phase run.
func (e *Evaluation) FinalStake() decimal.Decimal {
	if len(e.Phases) == 0 {
		return decimal.Zero
	}
	return e.Phases[len(e.Phases)-1].Stake
}
