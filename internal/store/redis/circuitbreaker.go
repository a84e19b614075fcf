package redis

import (
	"errors"
	"sync"
	"time"
)

// State is where the publish breaker stands. The numeric value is what the
// redis circuit breaker gauge reports.
type State int

const (
	StateClosed   State = iota // publishing to Redis
	StateOpen                  // tripped; records go to the replay buffer
	StateHalfOpen              // one trial publish in flight
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen rejects a publish while Redis is considered down.
var ErrCircuitOpen = errors.New("redis: circuit breaker is open")

// CircuitBreaker guards publishes to Redis. A run of threshold failed
// publishes trips it. While tripped every publish fails fast with
// ErrCircuitOpen until the cooldown ends; the next publish after that is a
// trial whose outcome either resumes publishing or trips the breaker again.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	state   State
	streak  int       // failed publishes in a row
	retryAt time.Time // first moment a trial publish is allowed
	trips   int

	// OnStateChange runs with the lock held and must not call back into the
	// breaker.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker returns a breaker that lets publishes through.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Execute runs publish when the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Execute(publish func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := publish()
	cb.record(err)
	return err
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Trips counts how many times the breaker has opened.
func (cb *CircuitBreaker) Trips() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.trips
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.retryAt) {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
	case StateHalfOpen:
		// only the trial publish goes through
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.streak = 0
		cb.setState(StateClosed)
		return
	}
	if cb.state == StateOpen {
		// a publish that started before the trip
		return
	}
	cb.streak++
	if cb.state == StateHalfOpen || cb.streak >= cb.threshold {
		cb.retryAt = cb.now().Add(cb.cooldown)
		cb.trips++
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
