package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "BAR_PERIOD_SEC", "BASE_STAKE", "STRATEGY", "INSTRUMENTS_FILE"} {
		t.Setenv(k, "")
	}
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BarPeriod != time.Minute {
		t.Errorf("expected 60s bar period, got %v", cfg.BarPeriod)
	}
	if cfg.SettleMargin != 5*time.Second || cfg.PairPause != 2*time.Second || cfg.ErrorPause != 10*time.Second {
		t.Errorf("unexpected pacing defaults: %+v", cfg)
	}
	if cfg.ConnectRetries != 3 || cfg.ConnectBaseDelay != 5*time.Second {
		t.Errorf("unexpected connect defaults: %d %v", cfg.ConnectRetries, cfg.ConnectBaseDelay)
	}
	if cfg.BaseStake.String() != "1" || cfg.MartingaleFactor.String() != "2" {
		t.Errorf("unexpected stake defaults: %s %s", cfg.BaseStake, cfg.MartingaleFactor)
	}
	if cfg.Strategy != "reversal_momentum" {
		t.Errorf("unexpected default strategy %q", cfg.Strategy)
	}
	if cfg.TelegramEnabled() {
		t.Error("telegram should be disabled without credentials")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	t.Setenv("PAIR_PAUSE_SEC", "0.5")
	t.Setenv("MARTINGALE_FACTOR", "2.5")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.TelegramEnabled() {
		t.Error("expected telegram enabled")
	}
	if cfg.PairPause != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.PairPause)
	}
	if cfg.MartingaleFactor.String() != "2.5" {
		t.Errorf("expected 2.5, got %s", cfg.MartingaleFactor)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected redis addr %q", cfg.RedisAddr)
	}
}

func TestFromEnv_InvalidNumber(t *testing.T) {
	t.Setenv("CONNECT_RETRIES", "three")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for non-numeric CONNECT_RETRIES")
	}
}

func TestFromEnv_InvalidRange(t *testing.T) {
	t.Setenv("BAR_PERIOD_SEC", "0")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for zero bar period")
	}
}

func TestFromEnv_FractionalBarPeriodRejected(t *testing.T) {
	for _, v := range []string{"1.5", "0.5"} {
		t.Setenv("BAR_PERIOD_SEC", v)
		if _, err := FromEnv(); err == nil {
			t.Errorf("expected error for BAR_PERIOD_SEC=%s", v)
		}
	}
}

func TestFromEnv_ZeroPausesKept(t *testing.T) {
	for _, k := range []string{"SETTLE_MARGIN_SEC", "PAIR_PAUSE_SEC", "CYCLE_PAUSE_SEC", "ERROR_PAUSE_SEC", "CONNECT_BASE_DELAY_SEC"} {
		t.Setenv(k, "0")
	}
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("zero pauses should be valid: %v", err)
	}
	if cfg.SettleMargin != 0 || cfg.PairPause != 0 || cfg.CyclePause != 0 || cfg.ErrorPause != 0 || cfg.ConnectBaseDelay != 0 {
		t.Errorf("zero values replaced: %+v", cfg)
	}
}

func TestFromEnv_NegativePauseRejected(t *testing.T) {
	t.Setenv("CYCLE_PAUSE_SEC", "-1")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for negative CYCLE_PAUSE_SEC")
	}
}

func TestLoadCatalog_Default(t *testing.T) {
	cfg := &Config{}
	cat, err := cfg.LoadCatalog()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.Len() != 30 {
		t.Errorf("expected 30 default instruments, got %d", cat.Len())
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	body := "instruments:\n  - code: BA_otc\n    name: Boeing (OTC)\n  - code: XAUUSD_otc\n    name: Gold (OTC)\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := cat.Instruments()
	if len(items) != 2 || items[0].Code != "BA_otc" || items[1].Code != "XAUUSD_otc" {
		t.Fatalf("unexpected catalog %+v", items)
	}
	if got := cat.Name("XAUUSD_otc"); got != "Gold-OTC" {
		t.Errorf("expected Gold-OTC, got %q", got)
	}
}

func TestLoadCatalogFile_Duplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	body := "instruments:\n  - code: BA_otc\n  - code: BA_otc\n"
	os.WriteFile(path, []byte(body), 0o644)

	if _, err := LoadCatalogFile(path); err == nil {
		t.Fatal("expected duplicate code error")
	}
}
