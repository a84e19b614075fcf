package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"otc-signalbot/internal/model"
)

const (
	boxTop    = "╭━━━━━━━━━━・━━━━━━━━━━╮"
	boxBottom = "╰━━━━━━━━━━・━━━━━━━━━━╯"
)

// TestMessage is sent once at startup to prove the chat is reachable.
const TestMessage = "🤖 REDOX Bot Test - Connection OK"

func directionEmoji(d model.Direction) string {
	if d == model.DirectionPut {
		return "🔴"
	}
	return "🟢"
}

// FormatSignal renders the entry message. entry is the bar boundary the
// trade should be placed on.
func FormatSignal(name string, dir model.Direction, price float64, entry time.Time) string {
	return strings.Join([]string{
		boxTop,
		"🐲 OPEN PAIR -» " + name,
		"🕓 TIMETABLE -» " + entry.Format("15:04"),
		"⏳ EXPIRATION-» M1",
		fmt.Sprintf("%s DIRECTION -» %s", directionEmoji(dir), dir),
		fmt.Sprintf("📶 PRICE     -» %.4f", price),
		boxBottom,
	}, "\n")
}

// FormatMartingale renders the retry message with the raised stake.
func FormatMartingale(name string, dir model.Direction, stake decimal.Decimal, entry time.Time) string {
	return strings.Join([]string{
		boxTop,
		"🔥 MTG TRADE -» " + name,
		"🕓 TIMETABLE -» " + entry.Format("15:04"),
		"⏳ EXPIRATION-» M1",
		fmt.Sprintf("%s DIRECTION -» %s", directionEmoji(dir), dir),
		fmt.Sprintf("💰 STAKE     -» %sx", stake.StringFixed(1)),
		boxBottom,
	}, "\n")
}

// FormatResult renders the final result box with the running tally.
func FormatResult(outcome model.Outcome, wins, losses int) string {
	var headline string
	switch outcome {
	case model.OutcomeInitialWin:
		headline = "✅✅  SURESHOT  ✅✅"
	case model.OutcomeMartingaleWin:
		headline = "✅✅  MTG WIN  ✅✅"
	default:
		headline = "❌❌  LOSS  ❌❌"
	}
	return strings.Join([]string{
		boxTop,
		headline,
		"",
		fmt.Sprintf("WIN :- %02d OTM :- %02d", wins, losses),
		boxBottom,
	}, "\n")
}

// SignalLine is the journal record written when a signal goes out.
func SignalLine(instrument string, dir model.Direction, price float64) string {
	return fmt.Sprintf("%s %s signal at %v", instrument, dir, price)
}

// ResultLine is the journal record written when an evaluation ends.
func ResultLine(instrument string, dir model.Direction, outcome model.Outcome) string {
	return fmt.Sprintf("%s %s → %s", instrument, dir, outcome.Label())
}
