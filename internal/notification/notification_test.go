package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"otc-signalbot/internal/model"
)

type sentMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func telegramServer(t *testing.T, status int, got *[]sentMessage) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var m sentMessage
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			t.Errorf("decode body: %v", err)
		}
		*got = append(*got, m)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(b)
}

func TestFallbackSink_NoPrimaryLogsAndSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.log")
	sink := NewFallbackSink(nil, NewFileLog(path), nil)
	var out bytes.Buffer
	sink.SetOutput(&out)

	if !sink.Deliver(context.Background(), "hello") {
		t.Fatal("delivery without a primary should count as success")
	}
	if !strings.Contains(out.String(), "hello") {
		t.Errorf("console copy missing, got %q", out.String())
	}
	content := readLog(t, path)
	if !strings.HasSuffix(content, " - hello\n\n") {
		t.Errorf("unexpected log record %q", content)
	}
}

func TestFallbackSink_PrimaryFailureFallsBack(t *testing.T) {
	var got []sentMessage
	srv := telegramServer(t, http.StatusInternalServerError, &got)
	tg := NewTelegramNotifier("TOKEN", "42")
	tg.BaseURL = srv.URL

	path := filepath.Join(t.TempDir(), "signals.log")
	sink := NewFallbackSink(tg, NewFileLog(path), nil)
	sink.SetOutput(&bytes.Buffer{})
	failures := 0
	sink.OnFailure = func() { failures++ }

	if sink.Deliver(context.Background(), "signal box") {
		t.Fatal("expected false on primary failure")
	}
	if failures != 1 {
		t.Errorf("expected 1 failure callback, got %d", failures)
	}
	if len(got) != 1 {
		t.Fatalf("expected one request, got %d", len(got))
	}
	if !strings.Contains(readLog(t, path), "signal box") {
		t.Error("failed message should be in the signal log")
	}
}

func TestFallbackSink_PrimarySuccess(t *testing.T) {
	var got []sentMessage
	srv := telegramServer(t, http.StatusOK, &got)
	tg := NewTelegramNotifier("TOKEN", "42")
	tg.BaseURL = srv.URL

	path := filepath.Join(t.TempDir(), "signals.log")
	sink := NewFallbackSink(tg, NewFileLog(path), nil)

	if !sink.Deliver(context.Background(), "box") {
		t.Fatal("expected delivery success")
	}
	if len(got) != 1 || got[0].ChatID != "42" || got[0].Text != "box" || got[0].ParseMode != "" {
		t.Errorf("unexpected request %+v", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("successful delivery should not write the fallback log")
	}
}

func TestTelegramNotifier_AlertEscapes(t *testing.T) {
	var got []sentMessage
	srv := telegramServer(t, http.StatusOK, &got)
	tg := NewTelegramNotifier("TOKEN", "42")
	tg.BaseURL = srv.URL

	err := tg.Send(context.Background(), Alert{Level: AlertCritical, Title: "feed-down", Message: "retry in 5.0s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].ParseMode != "MarkdownV2" {
		t.Errorf("expected MarkdownV2, got %q", got[0].ParseMode)
	}
	if !strings.Contains(got[0].Text, `feed\-down`) || !strings.Contains(got[0].Text, `5\.0s`) {
		t.Errorf("special characters not escaped: %q", got[0].Text)
	}
}

func TestTelegramNotifier_RateLimited(t *testing.T) {
	var got []sentMessage
	srv := telegramServer(t, http.StatusOK, &got)
	tg := NewTelegramNotifier("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.SetRateLimit(rate.Every(time.Hour), 1)

	if err := tg.SendText(context.Background(), "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tg.SendText(ctx, "second")
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 request to reach the API, got %d", len(got))
	}
}

func TestTelegramNotifier_NotConfigured(t *testing.T) {
	tg := NewTelegramNotifier("", "")
	if tg.Configured() {
		t.Fatal("empty token should not be configured")
	}
	if err := tg.SendText(context.Background(), "x"); err == nil {
		t.Fatal("expected error when not configured")
	}
}

func TestWebhookMirror(t *testing.T) {
	var payloads []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]interface{}
		json.NewDecoder(r.Body).Decode(&p)
		payloads = append(payloads, p)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewFallbackSink(nil, nil, nil, NewWebhookNotifier(srv.URL))
	sink.SetOutput(&bytes.Buffer{})
	sink.Deliver(context.Background(), "mirrored")

	if len(payloads) != 1 || payloads[0]["text"] != "mirrored" || payloads[0]["kind"] != "message" {
		t.Errorf("unexpected webhook payloads %v", payloads)
	}
}

func TestWebhookAlert_RejectedStatus(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Level: AlertWarning, Title: "t", Message: "m"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected the 502 to surface, got %v", err)
	}
	if _, ok := body["text"]; ok {
		t.Errorf("alert payload should not carry text: %v", body)
	}
	if body["kind"] != "alert" || body["title"] != "t" || body["ts"] == nil {
		t.Errorf("unexpected alert payload %v", body)
	}
}

func TestFormatSignal(t *testing.T) {
	entry := time.Date(2026, 3, 1, 14, 7, 0, 0, time.Local)
	msg := FormatSignal("USD/JPY-OTC", model.DirectionPut, 151.23456, entry)

	for _, want := range []string{
		"🐲 OPEN PAIR -» USD/JPY-OTC",
		"🕓 TIMETABLE -» 14:07",
		"⏳ EXPIRATION-» M1",
		"🔴 DIRECTION -» PUT",
		"📶 PRICE     -» 151.2346",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("signal message missing %q:\n%s", want, msg)
		}
	}
	if !strings.HasPrefix(msg, boxTop) || !strings.HasSuffix(msg, boxBottom) {
		t.Error("signal message should be boxed")
	}
}

func TestFormatMartingale(t *testing.T) {
	entry := time.Date(2026, 3, 1, 14, 8, 0, 0, time.Local)
	msg := FormatMartingale("Gold-OTC", model.DirectionCall, decimal.NewFromFloat(2), entry)
	if !strings.Contains(msg, "💰 STAKE     -» 2.0x") {
		t.Errorf("stake line missing:\n%s", msg)
	}
	if !strings.Contains(msg, "🟢 DIRECTION -» CALL") || !strings.Contains(msg, "🔥 MTG TRADE -» Gold-OTC") {
		t.Errorf("unexpected martingale message:\n%s", msg)
	}
}

func TestFormatResult(t *testing.T) {
	cases := map[model.Outcome]string{
		model.OutcomeInitialWin:    "SURESHOT",
		model.OutcomeMartingaleWin: "MTG WIN",
		model.OutcomeLoss:          "LOSS",
	}
	for outcome, headline := range cases {
		msg := FormatResult(outcome, 3, 1)
		if !strings.Contains(msg, headline) {
			t.Errorf("%s: expected headline %q", outcome, headline)
		}
		if !strings.Contains(msg, "WIN :- 03 OTM :- 01") {
			t.Errorf("%s: tally line missing:\n%s", outcome, msg)
		}
	}
}

func TestJournalLines(t *testing.T) {
	if got := SignalLine("BA_otc", model.DirectionCall, 1.4); got != "BA_otc CALL signal at 1.4" {
		t.Errorf("unexpected signal line %q", got)
	}
	if got := ResultLine("BA_otc", model.DirectionCall, model.OutcomeMartingaleWin); got != "BA_otc CALL → MTG WIN" {
		t.Errorf("unexpected result line %q", got)
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Send(context.Context, Alert) error {
	f.calls++
	return errors.New("chat unreachable")
}

func TestMultiNotifier_TriesEveryNotifier(t *testing.T) {
	var payloads []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]interface{}
		json.NewDecoder(r.Body).Decode(&p)
		payloads = append(payloads, p)
	}))
	defer srv.Close()

	first := &failingNotifier{}
	multi := MultiNotifier{first, NewWebhookNotifier(srv.URL)}

	err := multi.Send(context.Background(), Alert{Level: AlertInfo, Title: "Signal bot started", Message: "30 instruments"})
	if err == nil || !strings.Contains(err.Error(), "chat unreachable") {
		t.Errorf("expected the first notifier's error, got %v", err)
	}
	if first.calls != 1 || len(payloads) != 1 {
		t.Fatalf("expected both notifiers called, got %d and %d", first.calls, len(payloads))
	}
	if payloads[0]["kind"] != "alert" || payloads[0]["level"] != "INFO" {
		t.Errorf("unexpected webhook payload %v", payloads[0])
	}
}

func TestAlertOnError(t *testing.T) {
	var buf bytes.Buffer
	n := &failingNotifier{}
	alert := AlertOnError(n, AlertWarning, "Feed reconnect failed", slog.New(slog.NewTextHandler(&buf, nil)))

	alert(nil)
	if n.calls != 0 {
		t.Fatal("nil error should not alert")
	}
	alert(errors.New("reconnect failed after 3 attempts"))
	if n.calls != 1 {
		t.Fatalf("expected 1 alert, got %d", n.calls)
	}
	if !strings.Contains(buf.String(), "alert delivery failed") {
		t.Errorf("delivery failure should be logged, got %q", buf.String())
	}
}
