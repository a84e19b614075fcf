// Package redis publishes the live signal stream to Redis: pub/sub channels
// for dashboards, a capped stream of evaluations, and a tally hash.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"otc-signalbot/internal/model"
)

const (
	ChannelSignals    = "otc:signals"
	ChannelResults    = "otc:results"
	StreamEvaluations = "otc:evaluations"
	KeyTally          = "otc:tally"

	evaluationsMaxLen = 5000
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes signals and evaluations to Redis. It implements
// model.Recorder so it can sit next to the SQLite journal.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New connects to Redis and pings it.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// RecordSignal publishes a delivered signal on ChannelSignals.
func (p *Publisher) RecordSignal(ctx context.Context, sig model.Signal) error {
	if err := p.client.Publish(ctx, ChannelSignals, sig.JSON()).Err(); err != nil {
		return fmt.Errorf("redis publish signal: %w", err)
	}
	return nil
}

// RecordEvaluation publishes the result, appends it to the capped stream and
// updates the tally hash in one pipeline.
func (p *Publisher) RecordEvaluation(ctx context.Context, ev model.Evaluation) error {
	data := ev.JSON()

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, ChannelResults, data)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: StreamEvaluations,
		MaxLen: evaluationsMaxLen,
		Approx: true,
		Values: streamValues(ev, data),
	})
	pipe.HSet(ctx, KeyTally, tallyFields(ev))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline evaluation: %w", err)
	}
	return nil
}

func streamValues(ev model.Evaluation, data []byte) map[string]interface{} {
	return map[string]interface{}{
		"signal_id":  ev.Signal.ID,
		"instrument": ev.Signal.Instrument,
		"direction":  string(ev.Signal.Direction),
		"outcome":    string(ev.Outcome),
		"data":       string(data),
	}
}

func tallyFields(ev model.Evaluation) map[string]interface{} {
	return map[string]interface{}{
		"wins":       ev.Wins,
		"losses":     ev.Losses,
		"updated_at": ev.CompletedAt.Unix(),
	}
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
