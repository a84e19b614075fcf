// Package candlefeed is a JSON-over-WebSocket client (and matching test
// server) for a one-minute candle feed.
//
// Every request carries a UUID id; the server echoes it so responses can be
// matched out of order:
//
//	→ {"id":"…","action":"auth","token":"…","otp":"123456"}
//	← {"id":"…","ok":true}
//	→ {"id":"…","action":"candles","asset":"EURUSD_otc","end":1700000000,"offset":240,"period":60}
//	← {"id":"…","ok":true,"candles":[{"time":…,"open":…,"high":…,"low":…,"close":…}]}
//	→ {"id":"…","action":"ping"}
//	← {"id":"…","ok":true}
package candlefeed

const (
	ActionAuth    = "auth"
	ActionCandles = "candles"
	ActionPing    = "ping"
)

// Request is a client → server frame.
type Request struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
	OTP    string `json:"otp,omitempty"`
	Asset  string `json:"asset,omitempty"`
	End    int64  `json:"end,omitempty"`    // unix seconds
	Offset int64  `json:"offset,omitempty"` // seconds of history before End
	Period int64  `json:"period,omitempty"` // bar length in seconds
}

// Response is a server → client frame.
type Response struct {
	ID      string   `json:"id"`
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Candles []Candle `json:"candles,omitempty"`
}

// Candle is one OHLC bar as served by the feed. Time is the bar start.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}
