package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// HealthStatus represents the bot's health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected      bool
	LastCycleAt        time.Time
	RedisEnabled       bool
	RedisConnected     bool
	SQLiteOK           bool
	TelegramConfigured bool
	Strategy           string
	Instruments        int

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time

	now func() time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		now:       time.Now,
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCycle(t time.Time) {
	h.mu.Lock()
	h.LastCycleAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// SetInfo records static facts shown on /healthz.
func (h *HealthStatus) SetInfo(strategy string, instruments int, telegram bool) {
	h.mu.Lock()
	h.Strategy = strategy
	h.Instruments = instruments
	h.TelegramConfigured = telegram
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either handle may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(checkCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(checkCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// Report is the /healthz body.
type Report struct {
	Status             string  `json:"status"`
	Uptime             string  `json:"uptime"`
	FeedConnected      bool    `json:"feed_connected"`
	LastCycleAt        string  `json:"last_cycle_at,omitempty"`
	RedisEnabled       bool    `json:"redis_enabled"`
	RedisConnected     bool    `json:"redis_connected"`
	RedisLatencyMs     float64 `json:"redis_latency_ms"`
	SQLiteOK           bool    `json:"sqlite_ok"`
	SQLiteLatencyMs    float64 `json:"sqlite_latency_ms"`
	TelegramConfigured bool    `json:"telegram_configured"`
	Strategy           string  `json:"strategy"`
	Instruments        int     `json:"instruments"`
}

// Report summarises the current state. The feed being down is unhealthy; a
// failing journal or an enabled but unreachable Redis is degraded.
func (h *HealthStatus) Report() (Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, code := "healthy", http.StatusOK
	if !h.SQLiteOK || (h.RedisEnabled && !h.RedisConnected) {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	if !h.FeedConnected {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	r := Report{
		Status:             status,
		Uptime:             h.now().Sub(h.StartedAt).Round(time.Second).String(),
		FeedConnected:      h.FeedConnected,
		RedisEnabled:       h.RedisEnabled,
		RedisConnected:     h.RedisConnected,
		RedisLatencyMs:     h.RedisLatencyMs,
		SQLiteOK:           h.SQLiteOK,
		SQLiteLatencyMs:    h.SQLiteLatencyMs,
		TelegramConfigured: h.TelegramConfigured,
		Strategy:           h.Strategy,
		Instruments:        h.Instruments,
	}
	if !h.LastCycleAt.IsZero() {
		r.LastCycleAt = h.LastCycleAt.Format(time.RFC3339)
	}
	return r, code
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report, code := h.Report()
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(report)
}
