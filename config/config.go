// Package config loads the bot's runtime settings from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"otc-signalbot/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Telegram (both empty ⇒ console/log fallback)
	TelegramToken  string
	TelegramChatID string
	WebhookURL     string

	LogLevel string

	// Candle feed
	FeedURL        string
	FeedToken      string
	FeedTOTPSecret string

	// Detection
	Strategy      string
	MinVolatility float64

	// Evaluation
	BaseStake        decimal.Decimal
	MartingaleFactor decimal.Decimal
	BarPeriod        time.Duration
	SettleMargin     time.Duration

	// Scan pacing
	PairPause  time.Duration
	CyclePause time.Duration
	ErrorPause time.Duration

	// Connection supervision
	ConnectRetries   int
	ConnectBaseDelay time.Duration

	// Infrastructure
	SignalLogPath   string
	SQLitePath      string
	RedisAddr       string // empty disables the publisher
	RedisPassword   string
	MetricsAddr     string
	InstrumentsFile string
}

// Load reads an optional .env file, then the environment. Invalid numbers are
// returned as errors; missing values take their defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] ignoring .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),

		FeedURL:        getEnv("FEED_URL", "ws://localhost:9002/ws"),
		FeedToken:      getEnv("FEED_TOKEN", ""),
		FeedTOTPSecret: getEnv("FEED_TOTP_SECRET", ""),

		Strategy:      getEnv("STRATEGY", "reversal_momentum"),
		MinVolatility: p.float("MIN_VOLATILITY", 0.00001),

		BaseStake:        p.decimal("BASE_STAKE", "1.0"),
		MartingaleFactor: p.decimal("MARTINGALE_FACTOR", "2.0"),
		BarPeriod:        p.seconds("BAR_PERIOD_SEC", 60),
		SettleMargin:     p.seconds("SETTLE_MARGIN_SEC", 5),

		PairPause:  p.seconds("PAIR_PAUSE_SEC", 2),
		CyclePause: p.seconds("CYCLE_PAUSE_SEC", 5),
		ErrorPause: p.seconds("ERROR_PAUSE_SEC", 10),

		ConnectRetries:   p.int("CONNECT_RETRIES", 3),
		ConnectBaseDelay: p.seconds("CONNECT_BASE_DELAY_SEC", 5),

		SignalLogPath:   getEnv("SIGNAL_LOG_PATH", "signals.log"),
		SQLitePath:      getEnv("SQLITE_PATH", "data/signals.db"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:     getEnv("METRICS_ADDR", ":9090"),
		InstrumentsFile: getEnv("INSTRUMENTS_FILE", ""),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that parsing alone cannot.
func (c *Config) Validate() error {
	switch {
	case c.BarPeriod <= 0 || c.BarPeriod%time.Second != 0:
		return fmt.Errorf("config: BAR_PERIOD_SEC must be a positive whole number of seconds")
	case c.SettleMargin < 0:
		return fmt.Errorf("config: SETTLE_MARGIN_SEC must not be negative")
	case c.PairPause < 0 || c.CyclePause < 0 || c.ErrorPause < 0:
		return fmt.Errorf("config: PAIR_PAUSE_SEC, CYCLE_PAUSE_SEC and ERROR_PAUSE_SEC must not be negative")
	case c.ConnectBaseDelay < 0:
		return fmt.Errorf("config: CONNECT_BASE_DELAY_SEC must not be negative")
	case c.ConnectRetries < 1:
		return fmt.Errorf("config: CONNECT_RETRIES must be at least 1")
	case !c.BaseStake.IsPositive():
		return fmt.Errorf("config: BASE_STAKE must be positive")
	case !c.MartingaleFactor.IsPositive():
		return fmt.Errorf("config: MARTINGALE_FACTOR must be positive")
	case c.MinVolatility < 0:
		return fmt.Errorf("config: MIN_VOLATILITY must not be negative")
	}
	return nil
}

// TelegramEnabled reports whether both Telegram credentials are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// LoadCatalog returns the instrument catalog: the YAML file when
// InstrumentsFile is set, the built-in watch list otherwise.
func (c *Config) LoadCatalog() (*model.Catalog, error) {
	if c.InstrumentsFile == "" {
		return model.DefaultCatalog(), nil
	}
	return LoadCatalogFile(c.InstrumentsFile)
}

type catalogFile struct {
	Instruments []model.Instrument `yaml:"instruments"`
}

// LoadCatalogFile reads a YAML file of the form
//
//	instruments:
//	  - code: USDJPY_otc
//	    name: USD/JPY (OTC)
func LoadCatalogFile(path string) (*model.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read instruments: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse instruments %s: %w", path, err)
	}
	cat, err := model.NewCatalog(f.Instruments)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cat, nil
}

// parser keeps the first conversion error so Load reports it once.
type parser struct {
	err error
}

func (p *parser) fail(key, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
}

func (p *parser) float(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p *parser) int(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

// seconds accepts fractional seconds ("0.5").
func (p *parser) seconds(key string, fallback float64) time.Duration {
	return time.Duration(p.float(key, fallback) * float64(time.Second))
}

func (p *parser) decimal(key, fallback string) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, v, err)
		return decimal.RequireFromString(fallback)
	}
	return d
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
