package model

import "time"

// Direction is the predicted or observed move of a bar.
type Direction string

const (
	DirectionCall    Direction = "CALL"
	DirectionPut     Direction = "PUT"
	DirectionNeutral Direction = "NEUTRAL" // close == open
)

// Opposite returns the reversed direction. NEUTRAL has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionCall:
		return DirectionPut
	case DirectionPut:
		return DirectionCall
	default:
		return DirectionNeutral
	}
}

// Tradable reports whether a signal can carry this direction.
func (d Direction) Tradable() bool {
	return d == DirectionCall || d == DirectionPut
}

// Bar is one OHLC summary for a fixed interval.
// Timestamp is the bar start in unix seconds.
type Bar struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Timestamp int64   `json:"time"`
}

// Direction classifies the bar by close vs open.
func (b Bar) Direction() Direction {
	switch {
	case b.Close > b.Open:
		return DirectionCall
	case b.Close < b.Open:
		return DirectionPut
	default:
		return DirectionNeutral
	}
}

// Range returns high - low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Start returns the bar start as a UTC time.
func (b Bar) Start() time.Time {
	return time.Unix(b.Timestamp, 0).UTC()
}

// Contains reports whether ts (unix seconds) falls in [Timestamp, Timestamp+period).
func (b Bar) Contains(ts int64, period time.Duration) bool {
	p := int64(period / time.Second)
	return ts >= b.Timestamp && ts < b.Timestamp+p
}
