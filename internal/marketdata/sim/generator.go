// Package sim produces deterministic one-minute bars for staging and tests.
//
// A bar is a pure function of (asset, bar start): the same request always
// returns the same prices, so the bot and the evaluator agree on what a bar
// looked like no matter when they ask.
package sim

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sync"

	"otc-signalbot/pkg/candlefeed"
)

// Generator implements candlefeed.Provider.
type Generator struct {
	// Volatility is the relative size of a move between consecutive bar
	// levels. Defaults to 0.002 (0.2%).
	Volatility float64

	// Seed changes the whole price surface.
	Seed int64

	mu          sync.RWMutex
	unavailable map[string]bool
	bases       map[string]float64
}

// NewGenerator creates a generator.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Volatility:  0.002,
		Seed:        seed,
		unavailable: make(map[string]bool),
		bases:       make(map[string]float64),
	}
}

// SetBase pins the price level around which asset moves.
func (g *Generator) SetBase(asset string, price float64) {
	g.mu.Lock()
	g.bases[asset] = price
	g.mu.Unlock()
}

// SetUnavailable makes asset return no data.
func (g *Generator) SetUnavailable(asset string, off bool) {
	g.mu.Lock()
	g.unavailable[asset] = off
	g.mu.Unlock()
}

// Candles returns count closed bars ending at or before end, oldest first.
// The bar still forming at end is excluded.
func (g *Generator) Candles(asset string, end int64, count int, period int64) []candlefeed.Candle {
	if count <= 0 || period <= 0 {
		return nil
	}
	g.mu.RLock()
	off := g.unavailable[asset]
	g.mu.RUnlock()
	if off {
		return nil
	}

	newest := end - mod(end, period) - period
	out := make([]candlefeed.Candle, 0, count)
	for i := count - 1; i >= 0; i-- {
		out = append(out, g.Bar(asset, newest-int64(i)*period, period))
	}
	return out
}

// Bar returns the bar of asset starting at start.
func (g *Generator) Bar(asset string, start, period int64) candlefeed.Candle {
	k := start / period
	o := g.level(asset, k)
	c := g.level(asset, k+1)

	rng := rand.New(rand.NewSource(g.seed(asset, k) ^ 0x5bd1e995))
	wick := math.Abs(o) * g.Volatility * rng.Float64() * 0.5
	return candlefeed.Candle{
		Time:  start,
		Open:  round5(o),
		High:  round5(math.Max(o, c) + wick),
		Low:   round5(math.Min(o, c) - wick),
		Close: round5(c),
	}
}

// level is the price at the boundary starting bar k.
func (g *Generator) level(asset string, k int64) float64 {
	rng := rand.New(rand.NewSource(g.seed(asset, k)))
	return g.base(asset) * (1 + g.Volatility*(rng.Float64()*2-1))
}

func (g *Generator) base(asset string) float64 {
	g.mu.RLock()
	b, ok := g.bases[asset]
	g.mu.RUnlock()
	if ok {
		return b
	}
	h := fnv.New32a()
	h.Write([]byte(asset))
	return 1 + float64(h.Sum32()%20000)/100 // 1.00 .. 200.99
}

func (g *Generator) seed(asset string, k int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(asset))
	return int64(h.Sum64()) ^ (k * 0x9E3779B1) ^ g.Seed
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
