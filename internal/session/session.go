// Package session holds the process-wide mutable state of the bot: the
// running win/loss tally and the martingale stake of the evaluation in
// flight. A Session is created once and owned by the scan loop.
package session

import (
	"sync"

	"github.com/shopspring/decimal"

	"otc-signalbot/internal/model"
)

// Tally is a copy of the cumulative counters.
type Tally struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Total returns the number of completed evaluations.
func (t Tally) Total() int { return t.Wins + t.Losses }

// WinRate returns wins/total in [0,1], 0 when nothing completed yet.
func (t Tally) WinRate() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Wins) / float64(t.Total())
}

// Session is the state of one bot process. Only the scan goroutine mutates
// it; the mutex lets HTTP readers take snapshots.
type Session struct {
	mu sync.RWMutex

	tally      Tally
	baseStake  decimal.Decimal
	stake      decimal.Decimal
	phase      model.Phase
	inSequence bool
	instrument string
}

// New creates a session with the given base stake.
func New(baseStake decimal.Decimal) *Session {
	return &Session{
		baseStake: baseStake,
		stake:     baseStake,
	}
}

// Begin starts an evaluation sequence: stake reset to base, phase INITIAL.
func (s *Session) Begin(instrument string) {
	s.mu.Lock()
	s.stake = s.baseStake
	s.phase = model.PhaseInitial
	s.inSequence = true
	s.instrument = instrument
	s.mu.Unlock()
}

// EnterMartingale moves to the retry phase with stake = base * factor.
func (s *Session) EnterMartingale(factor decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stake = s.baseStake.Mul(factor)
	s.phase = model.PhaseMartingale
	return s.stake
}

// Finish records the terminal outcome, resets the stake and leaves the sequence.
// It returns the tally after the update.
func (s *Session) Finish(outcome model.Outcome) Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	if outcome.Won() {
		s.tally.Wins++
	} else {
		s.tally.Losses++
	}
	s.reset()
	return s.tally
}

// Abort leaves the sequence without touching the tally.
func (s *Session) Abort() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
}

func (s *Session) reset() {
	s.stake = s.baseStake
	s.phase = ""
	s.inSequence = false
	s.instrument = ""
}

// Stake returns the current stake.
func (s *Session) Stake() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stake
}

// Tally returns the cumulative counters.
func (s *Session) Tally() Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tally
}

// Snapshot is a read-only dump for the API.
type Snapshot struct {
	Tally      Tally           `json:"tally"`
	WinRate    float64         `json:"win_rate"`
	Stake      decimal.Decimal `json:"stake"`
	Phase      model.Phase     `json:"phase,omitempty"`
	InSequence bool            `json:"in_sequence"`
	Instrument string          `json:"instrument,omitempty"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Tally:      s.tally,
		WinRate:    s.tally.WinRate(),
		Stake:      s.stake,
		Phase:      s.phase,
		InSequence: s.inSequence,
		Instrument: s.instrument,
	}
}
