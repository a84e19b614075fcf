// Package feed adapts the candle feed client to model.CandleSource.
package feed

import (
	"context"
	"sort"
	"time"

	"otc-signalbot/internal/model"
	"otc-signalbot/pkg/candlefeed"
)

// Fetcher is the part of candlefeed.Client the adapter needs.
type Fetcher interface {
	GetCandles(ctx context.Context, asset string, end time.Time, offset, period time.Duration) ([]candlefeed.Candle, error)
}

// Source serves bars from the feed.
type Source struct {
	client Fetcher

	// OnFetch, if set, observes every fetch (metrics).
	OnFetch func(instrument string, bars int, err error)
}

// NewSource wraps a feed client.
func NewSource(client Fetcher) *Source {
	return &Source{client: client}
}

// FetchBars returns up to count bars ending at end, sorted oldest first.
// An empty feed response yields a nil slice and a nil error.
func (s *Source) FetchBars(ctx context.Context, instrument string, end time.Time, count int, period time.Duration) ([]model.Bar, error) {
	candles, err := s.client.GetCandles(ctx, instrument, end, time.Duration(count)*period, period)
	if s.OnFetch != nil {
		s.OnFetch(instrument, len(candles), err)
	}
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}
	return ToBars(candles, count), nil
}

// ToBars converts feed candles to bars, orders them by start time with
// duplicates dropped, and keeps the newest count.
func ToBars(candles []candlefeed.Candle, count int) []model.Bar {
	bars := make([]model.Bar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, model.Bar{
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Timestamp: c.Time,
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })

	dedup := bars[:0]
	for i, b := range bars {
		if i > 0 && b.Timestamp == dedup[len(dedup)-1].Timestamp {
			dedup[len(dedup)-1] = b // later update for the same bar wins
			continue
		}
		dedup = append(dedup, b)
	}
	if count > 0 && len(dedup) > count {
		dedup = dedup[len(dedup)-count:]
	}
	return dedup
}
