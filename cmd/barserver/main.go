// cmd/barserver is a demo candle feed for running signalbot without a broker
// session. Serves simulated closed bars over the candlefeed protocol.
//
// Bars are a pure function of (asset, bar start), so repeated requests for
// the same window always match.
//
// Config (env vars):
//
//	BARSERVER_ADDR     listen address (default: ":9002")
//	FEED_TOKEN         required auth token (default: none)
//	FEED_TOTP_SECRET   base32 TOTP secret checked on auth (default: none)
//	SIM_SEED           price surface seed (default: "1")
//	SIM_VOLATILITY     relative move between bars (default: "0.002")
//	SIM_BASES          comma-separated ASSET:PRICE start levels
//	SIM_UNAVAILABLE    comma-separated assets that return no data
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"otc-signalbot/internal/marketdata/sim"
	"otc-signalbot/pkg/candlefeed"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[barserver] starting demo candle feed...")

	addr := envOrDefault("BARSERVER_ADDR", ":9002")
	seed := envIntOrDefault("SIM_SEED", 1)

	gen := sim.NewGenerator(int64(seed))
	if v := os.Getenv("SIM_VOLATILITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			log.Fatalf("[barserver] invalid SIM_VOLATILITY %q", v)
		}
		gen.Volatility = f
	}
	for asset, price := range parseBases(os.Getenv("SIM_BASES")) {
		gen.SetBase(asset, price)
	}
	for _, asset := range splitList(os.Getenv("SIM_UNAVAILABLE")) {
		gen.SetUnavailable(asset, true)
		log.Printf("[barserver] %s will return no data", asset)
	}

	feed := candlefeed.NewServer(gen, candlefeed.ServerConfig{
		Token:      os.Getenv("FEED_TOKEN"),
		TOTPSecret: os.Getenv("FEED_TOTP_SECRET"),
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", feed)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"barserver"}`)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("[barserver] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("[barserver] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseBases(s string) map[string]float64 {
	out := map[string]float64{}
	for _, part := range splitList(s) {
		seg := strings.SplitN(part, ":", 2)
		if len(seg) != 2 {
			log.Printf("[barserver] skipping invalid base spec: %q", part)
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(seg[1]), 64)
		if err != nil || price <= 0 {
			log.Printf("[barserver] skipping invalid base price: %q", part)
			continue
		}
		out[strings.TrimSpace(seg[0])] = price
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
