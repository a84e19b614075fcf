package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"otc-signalbot/internal/model"
)

// Metrics holds all Prometheus metrics for the signal bot.
type Metrics struct {
	SignalsTotal     *prometheus.CounterVec // labels: strategy, direction
	EvaluationsTotal *prometheus.CounterVec // labels: outcome
	FetchFailures    prometheus.Counter
	EmptyFetches     prometheus.Counter
	Reconnects       *prometheus.CounterVec // labels: result=ok|failed
	NotifyFailures   prometheus.Counter
	InstrumentErrors prometheus.Counter

	CycleDur      prometheus.Histogram
	EvaluationDur prometheus.Histogram

	SQLiteCommitDur prometheus.Histogram

	// Redis publisher circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisBreakerTrips        prometheus.Counter
	RedisBufferedWrites      prometheus.Counter
	RedisReplayedWrites      prometheus.Counter
	RedisBufferPending       prometheus.Gauge

	TallyWins     prometheus.Gauge
	TallyLosses   prometheus.Gauge
	FeedConnected prometheus.Gauge // 0=down, 1=up

	// Health, if set, is kept in step with the scan events.
	Health *HealthStatus
}

// NewMetrics creates the metrics and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signals_total",
			Help: "Signals that passed detection and the volatility filter",
		}, []string{"strategy", "direction"}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_evaluations_total",
			Help: "Completed evaluations by outcome",
		}, []string{"outcome"}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_fetch_failures_total",
			Help: "Candle requests that returned an error",
		}),
		EmptyFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_empty_fetch_total",
			Help: "Scans skipped because the feed had no candles",
		}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_reconnects_total",
			Help: "Feed connection attempts by result",
		}, []string{"result"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_notify_failures_total",
			Help: "Messages the chat channel rejected",
		}),
		InstrumentErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_instrument_errors_total",
			Help: "Instrument scans that failed or panicked",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_cycle_duration_seconds",
			Help:    "Wall time of one pass over the catalog",
			Buckets: []float64{30, 60, 120, 300, 600, 1200},
		}),
		EvaluationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_evaluation_duration_seconds",
			Help:    "Wall time from signal to result",
			Buckets: []float64{60, 65, 70, 130, 140, 180},
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_sqlite_commit_duration_seconds",
			Help:    "SQLite journal write latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_redis_breaker_trips_total",
			Help: "Times the Redis breaker has opened",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_redis_buffered_writes_total",
			Help: "Records buffered locally while the Redis breaker was open",
		}),
		RedisReplayedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_redis_replayed_writes_total",
			Help: "Buffered records replayed to Redis after the breaker closed",
		}),
		RedisBufferPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_redis_buffer_pending",
			Help: "Records waiting in the local Redis buffer",
		}),
		TallyWins: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_tally_wins",
			Help: "Wins in the current session",
		}),
		TallyLosses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_tally_losses",
			Help: "Losses in the current session",
		}),
		FeedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_feed_connected",
			Help: "Feed session state (0=down, 1=up)",
		}),
	}

	reg.MustRegister(
		m.SignalsTotal,
		m.EvaluationsTotal,
		m.FetchFailures,
		m.EmptyFetches,
		m.Reconnects,
		m.NotifyFailures,
		m.InstrumentErrors,
		m.CycleDur,
		m.EvaluationDur,
		m.SQLiteCommitDur,
		m.RedisCircuitBreakerState,
		m.RedisBreakerTrips,
		m.RedisBufferedWrites,
		m.RedisReplayedWrites,
		m.RedisBufferPending,
		m.TallyWins,
		m.TallyLosses,
		m.FeedConnected,
	)
	return m
}

// SignalEmitted counts a signal.
func (m *Metrics) SignalEmitted(sig model.Signal) {
	m.SignalsTotal.WithLabelValues(sig.Strategy, string(sig.Direction)).Inc()
}

// EmptyFetch counts a scan with no data.
func (m *Metrics) EmptyFetch(string) { m.EmptyFetches.Inc() }

// InstrumentFailed counts a failed scan.
func (m *Metrics) InstrumentFailed(string, error) { m.InstrumentErrors.Inc() }

// CycleCompleted records a full pass.
func (m *Metrics) CycleCompleted(took time.Duration) {
	m.CycleDur.Observe(took.Seconds())
	if m.Health != nil {
		m.Health.SetLastCycle(time.Now())
	}
}

// EvaluationCompleted records an outcome and the resulting tally.
func (m *Metrics) EvaluationCompleted(ev model.Evaluation, took time.Duration) {
	m.EvaluationsTotal.WithLabelValues(string(ev.Outcome)).Inc()
	m.EvaluationDur.Observe(took.Seconds())
	m.TallyWins.Set(float64(ev.Wins))
	m.TallyLosses.Set(float64(ev.Losses))
}

// ConnectAttempt records a feed connection attempt.
func (m *Metrics) ConnectAttempt(ok bool) {
	result := "failed"
	if ok {
		result = "ok"
	}
	m.Reconnects.WithLabelValues(result).Inc()
	m.SetFeedConnected(ok)
}

// SetFeedConnected updates the feed gauge and health.
func (m *Metrics) SetFeedConnected(ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	m.FeedConnected.Set(v)
	if m.Health != nil {
		m.Health.SetFeedConnected(ok)
	}
}

// FetchObserved counts failed candle requests.
func (m *Metrics) FetchObserved(_ string, _ int, err error) {
	if err != nil {
		m.FetchFailures.Inc()
	}
}

// Server runs an HTTP server exposing /metrics, /healthz and the API.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates the metrics and health server. api, if non-nil, is
// mounted under /api/.
func NewServer(addr string, health *HealthStatus, api http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)
	if api != nil {
		mux.Handle("/api/", api)
	}

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
