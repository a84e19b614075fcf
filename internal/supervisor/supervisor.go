// Package supervisor keeps the market-data session alive with bounded,
// exponentially spaced reconnection attempts.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"otc-signalbot/internal/marketdata/barclock"
)

// ErrReconnectFailed is returned once every attempt in a round has failed.
var ErrReconnectFailed = errors.New("supervisor: reconnect failed")

// Connector is a session to the market-data feed.
type Connector interface {
	// Connect opens a session. ok=false with a reason means the feed
	// rejected it; err means it could not be reached.
	Connect(ctx context.Context) (ok bool, reason string, err error)
	IsConnected(ctx context.Context) bool
	Close() error
}

// Config bounds a reconnection round.
type Config struct {
	MaxAttempts int           // default 3
	BaseDelay   time.Duration // doubled after each failure; 0 retries at once
	Logger      *slog.Logger
}

// DefaultConfig allows three attempts 5s and 10s apart.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 5 * time.Second}
}

func (c *Config) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Supervisor owns the feed session's lifecycle.
type Supervisor struct {
	conn  Connector
	clock barclock.Clock
	cfg   Config
	log   *slog.Logger

	// OnAttempt, if set, observes every connection attempt (metrics).
	OnAttempt func(ok bool)

	// OnExhausted, if set, runs once per round that used up every attempt.
	OnExhausted func(err error)
}

// New creates a supervisor.
func New(conn Connector, clock barclock.Clock, cfg Config) *Supervisor {
	cfg.defaults()
	return &Supervisor{
		conn:  conn,
		clock: clock,
		cfg:   cfg,
		log:   cfg.Logger.With(slog.String("component", "supervisor")),
	}
}

// Connect tries up to MaxAttempts times, waiting BaseDelay, 2*BaseDelay, ...
// between failures. It returns ErrReconnectFailed when all attempts fail and
// ctx.Err() if cancelled while waiting.
func (s *Supervisor) Connect(ctx context.Context) error {
	delay := s.cfg.BaseDelay
	var last string

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		ok, reason, err := s.conn.Connect(ctx)
		if s.OnAttempt != nil {
			s.OnAttempt(ok && err == nil)
		}
		if ok && err == nil {
			s.log.Info("connected to feed", slog.Int("attempt", attempt))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		last = reason
		if err != nil {
			last = err.Error()
		}
		s.log.Warn("connection attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.cfg.MaxAttempts),
			slog.String("reason", last))

		if attempt < s.cfg.MaxAttempts {
			s.log.Info("retrying connection", slog.Duration("delay", delay))
			if err := s.clock.Sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
	}
	err := fmt.Errorf("%w after %d attempts: %s", ErrReconnectFailed, s.cfg.MaxAttempts, last)
	if s.OnExhausted != nil {
		s.OnExhausted(err)
	}
	return err
}

// Ensure reconnects only if the session is down.
func (s *Supervisor) Ensure(ctx context.Context) error {
	if s.conn.IsConnected(ctx) {
		return nil
	}
	s.log.Warn("connection lost, reconnecting")
	return s.Connect(ctx)
}

// Close ends the session.
func (s *Supervisor) Close() error {
	return s.conn.Close()
}
