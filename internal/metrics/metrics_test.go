package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"otc-signalbot/internal/model"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		t.Fatal(err)
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatal("not a counter or gauge")
	return 0
}

func TestMetrics_ScanEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Health = NewHealthStatus()

	m.SignalEmitted(model.Signal{Strategy: "reversal", Direction: model.DirectionPut})
	m.SignalEmitted(model.Signal{Strategy: "reversal", Direction: model.DirectionPut})
	m.EmptyFetch("BA_otc")
	m.InstrumentFailed("BA_otc", nil)
	m.CycleCompleted(90 * time.Second)

	if v := counterValue(t, m.SignalsTotal.WithLabelValues("reversal", "PUT")); v != 2 {
		t.Errorf("expected 2 signals, got %v", v)
	}
	if v := counterValue(t, m.EmptyFetches); v != 1 {
		t.Errorf("expected 1 empty fetch, got %v", v)
	}
	if v := counterValue(t, m.InstrumentErrors); v != 1 {
		t.Errorf("expected 1 instrument error, got %v", v)
	}
	if m.Health.LastCycleAt.IsZero() {
		t.Error("cycle completion should update health")
	}
}

func TestMetrics_EvaluationAndConnection(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.EvaluationCompleted(model.Evaluation{Outcome: model.OutcomeMartingaleWin, Wins: 3, Losses: 1}, 130*time.Second)
	if v := counterValue(t, m.EvaluationsTotal.WithLabelValues("MARTINGALE_WIN")); v != 1 {
		t.Errorf("expected 1 evaluation, got %v", v)
	}
	if v := counterValue(t, m.TallyWins); v != 3 {
		t.Errorf("expected wins gauge 3, got %v", v)
	}

	m.ConnectAttempt(false)
	m.ConnectAttempt(true)
	if v := counterValue(t, m.Reconnects.WithLabelValues("failed")); v != 1 {
		t.Errorf("expected 1 failed attempt, got %v", v)
	}
	if v := counterValue(t, m.FeedConnected); v != 1 {
		t.Errorf("expected feed up, got %v", v)
	}

	m.FetchObserved("BA_otc", 0, nil)
	m.FetchObserved("BA_otc", 0, http.ErrHandlerTimeout)
	if v := counterValue(t, m.FetchFailures); v != 1 {
		t.Errorf("expected 1 fetch failure, got %v", v)
	}
}

func TestHealth_ServeHTTP(t *testing.T) {
	h := NewHealthStatus()
	h.SetInfo("reversal_momentum", 30, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("feed down should be 503, got %d", rec.Code)
	}
	var r Report
	json.NewDecoder(rec.Body).Decode(&r)
	if r.Status != "unhealthy" || r.Instruments != 30 {
		t.Errorf("unexpected report %+v", r)
	}

	h.SetFeedConnected(true)
	h.SetSQLiteOK(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	h.SetRedisEnabled(true)
	if r, _ := h.Report(); r.Status != "degraded" {
		t.Errorf("unreachable redis should degrade, got %s", r.Status)
	}
}
