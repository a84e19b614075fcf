// cmd/signalbot scans the OTC watch list, posts signals to Telegram and
// scores each one against the following bars (with one martingale retry).
//
// Config comes from the environment (and an optional .env); see config.FromEnv.
// Point FEED_URL at cmd/barserver for a local run without a broker session.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"otc-signalbot/config"
	"otc-signalbot/internal/api"
	"otc-signalbot/internal/evaluator"
	"otc-signalbot/internal/logger"
	"otc-signalbot/internal/marketdata/barclock"
	"otc-signalbot/internal/marketdata/feed"
	"otc-signalbot/internal/metrics"
	"otc-signalbot/internal/model"
	"otc-signalbot/internal/notification"
	"otc-signalbot/internal/scanner"
	"otc-signalbot/internal/session"
	redisstore "otc-signalbot/internal/store/redis"
	sqlitestore "otc-signalbot/internal/store/sqlite"
	"otc-signalbot/internal/strategy"
	"otc-signalbot/internal/supervisor"
	"otc-signalbot/pkg/candlefeed"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[signalbot] starting...")

	// ---- Config ----
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[signalbot] config: %v", err)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Printf("[signalbot] %v, using INFO", err)
	}
	lg := logger.Init("signalbot", level)

	catalog, err := cfg.LoadCatalog()
	if err != nil {
		log.Fatalf("[signalbot] catalog: %v", err)
	}
	strat, err := strategy.New(cfg.Strategy)
	if err != nil {
		log.Fatalf("[signalbot] %v", err)
	}
	log.Printf("[signalbot] %d instruments, strategy=%s", catalog.Len(), strat.Name())

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	health.SetInfo(strat.Name(), catalog.Len(), cfg.TelegramEnabled())
	prom.Health = health

	// ---- Graceful shutdown ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Notification ----
	var (
		primary notification.TextSender
		alerts  notification.MultiNotifier
		mirrors []notification.TextSender
	)
	if cfg.TelegramEnabled() {
		telegram := notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		primary = telegram
		alerts = append(alerts, telegram)
	} else {
		log.Println("[signalbot] WARNING: TELEGRAM_TOKEN / TELEGRAM_CHAT_ID not set, messages go to console and log only")
		alerts = append(alerts, notification.NewLogNotifier(lg))
	}
	if cfg.WebhookURL != "" {
		webhook := notification.NewWebhookNotifier(cfg.WebhookURL)
		mirrors = append(mirrors, webhook)
		alerts = append(alerts, webhook)
	}
	sink := notification.NewFallbackSink(primary, notification.NewFileLog(cfg.SignalLogPath), lg, mirrors...)
	sink.OnFailure = prom.NotifyFailures.Inc

	if cfg.TelegramEnabled() {
		if sink.Deliver(ctx, notification.TestMessage) {
			log.Println("[signalbot] telegram test message sent")
		} else {
			log.Println("[signalbot] WARNING: telegram test message failed")
		}
	}

	// ---- Feed session ----
	client := candlefeed.New(candlefeed.Config{
		URL:        cfg.FeedURL,
		Token:      cfg.FeedToken,
		TOTPSecret: cfg.FeedTOTPSecret,
	})
	clock := barclock.Real{}
	sup := supervisor.New(client, clock, supervisor.Config{
		MaxAttempts: cfg.ConnectRetries,
		BaseDelay:   cfg.ConnectBaseDelay,
		Logger:      lg,
	})
	sup.OnAttempt = prom.ConnectAttempt
	defer sup.Close()

	if err := sup.Connect(ctx); err != nil {
		if errors.Is(err, supervisor.ErrReconnectFailed) {
			notification.AlertOnError(alerts, notification.AlertCritical, "Feed unreachable", lg)(err)
		}
		log.Printf("[signalbot] feed connect: %v", err)
		sup.Close()
		stop()
		os.Exit(1)
	}
	log.Printf("[signalbot] feed connected: %s", cfg.FeedURL)
	sup.OnExhausted = notification.AlertOnError(alerts, notification.AlertWarning, "Feed reconnect failed", lg)

	if err := alerts.Send(ctx, notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Signal bot started",
		Message: fmt.Sprintf("%d instruments, strategy %s", catalog.Len(), strat.Name()),
	}); err != nil {
		log.Printf("[signalbot] WARNING: startup alert failed: %v", err)
	}

	source := feed.NewSource(client)
	source.OnFetch = prom.FetchObserved

	// ---- History ----
	journal, err := sqlitestore.Open(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[signalbot] sqlite init failed: %v", err)
	}
	defer journal.Close()
	journal.OnCommit = func(d time.Duration) { prom.SQLiteCommitDur.Observe(d.Seconds()) }
	health.SetSQLiteOK(true)
	log.Println("[signalbot] sqlite journal ready")

	recorders := scanner.MultiRecorder{journal}
	if cfg.RedisAddr != "" {
		health.SetRedisEnabled(true)
		pub, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[signalbot] WARNING: redis init failed: %v (continuing without redis)", err)
		} else {
			defer pub.Close()
			cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
			cb.OnStateChange = func(_, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisBreakerTrips.Inc()
				}
			}
			defer func() {
				if n := cb.Trips(); n > 0 {
					log.Printf("[signalbot] redis breaker tripped %d times this run", n)
				}
			}()
			buffered := redisstore.NewBufferedPublisher(pub, cb, 1000)
			buffered.OnBuffer = func() {
				prom.RedisBufferedWrites.Inc()
				prom.RedisBufferPending.Set(float64(buffered.PendingCount()))
			}
			buffered.OnFlush = func(n int) {
				prom.RedisReplayedWrites.Add(float64(n))
				prom.RedisBufferPending.Set(float64(buffered.PendingCount()))
			}
			recorders = append(recorders, buffered)
			health.StartLivenessChecker(ctx, pub.Client(), journal.DB(), 10*time.Second)
			log.Println("[signalbot] redis publisher ready")
		}
	}
	if len(recorders) == 1 {
		health.StartLivenessChecker(ctx, nil, journal.DB(), 10*time.Second)
	}

	// ---- Session & evaluator ----
	sess := session.New(cfg.BaseStake)
	eval := evaluator.New(source, sink, clock, evaluator.Config{
		BarPeriod:        cfg.BarPeriod,
		SettleMargin:     cfg.SettleMargin,
		MartingaleFactor: cfg.MartingaleFactor,
		Names:            catalog,
		Logger:           lg,
	})
	eval.OnComplete = prom.EvaluationCompleted

	// ---- HTTP: /metrics, /healthz, /api/v1 ----
	router := api.NewRouter(api.Deps{Session: sess, History: journal})
	srv := metrics.NewServer(cfg.MetricsAddr, health, router)
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(shutdownCtx)
	}()

	var rec model.Recorder = recorders
	scan := scanner.New(scanner.Deps{
		Catalog:    catalog,
		Source:     source,
		Strategy:   strat,
		Evaluator:  eval,
		Supervisor: sup,
		Session:    sess,
		Sink:       sink,
		Recorder:   rec,
		Observer:   prom,
		Clock:      clock,
		Logger:     lg,
	}, scanner.Config{
		BarPeriod:     cfg.BarPeriod,
		MinVolatility: cfg.MinVolatility,
		PairPause:     cfg.PairPause,
		CyclePause:    cfg.CyclePause,
		ErrorPause:    cfg.ErrorPause,
	})

	log.Println("[signalbot] running, Ctrl+C to stop")
	if err := scan.Run(ctx); err != nil {
		lg.Error("scan loop exited", slog.String("error", err.Error()))
	}

	t := sess.Tally()
	log.Printf("[signalbot] stopped. session tally: %d wins, %d losses", t.Wins, t.Losses)
}
