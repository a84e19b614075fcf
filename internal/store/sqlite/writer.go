// Package sqlite keeps a durable journal of signals and their evaluations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"otc-signalbot/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the journal.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Journal is a SQLite-backed model.Recorder.
type Journal struct {
	db *sql.DB

	// OnCommit, if set, observes the duration of every write.
	OnCommit func(time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Open opens (creating if needed) the journal database with WAL mode and schema.
func Open(cfg Config) (*Journal, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; the API reads through the same handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened journal at %s", cfg.DBPath)
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id          TEXT    PRIMARY KEY,
			instrument  TEXT    NOT NULL,
			direction   TEXT    NOT NULL,
			price       REAL    NOT NULL,
			score       REAL    NOT NULL,
			volatility  REAL    NOT NULL,
			strategy    TEXT    NOT NULL,
			detected_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS evaluations (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id    TEXT    NOT NULL,
			instrument   TEXT    NOT NULL,
			direction    TEXT    NOT NULL,
			outcome      TEXT    NOT NULL,
			phases       INTEGER NOT NULL,
			final_stake  TEXT    NOT NULL,
			wins         INTEGER NOT NULL,
			losses       INTEGER NOT NULL,
			completed_at INTEGER NOT NULL,
			data         TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_evaluations_completed ON evaluations (completed_at);
	`)
	return err
}

// RecordSignal stores a delivered signal. Re-recording the same id is a no-op.
func (j *Journal) RecordSignal(ctx context.Context, sig model.Signal) error {
	start := time.Now()
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO signals
			(id, instrument, direction, price, score, volatility, strategy, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.ID, sig.Instrument, string(sig.Direction), sig.Price, sig.Score, sig.Volatility, sig.Strategy, sig.DetectedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	j.observe(start)
	return nil
}

// RecordEvaluation stores the terminal record of an evaluation.
func (j *Journal) RecordEvaluation(ctx context.Context, ev model.Evaluation) error {
	start := time.Now()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO evaluations
			(signal_id, instrument, direction, outcome, phases, final_stake, wins, losses, completed_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.Signal.ID, ev.Signal.Instrument, string(ev.Signal.Direction), string(ev.Outcome),
		len(ev.Phases), ev.FinalStake().String(), ev.Wins, ev.Losses, ev.CompletedAt.Unix(), string(ev.JSON()))
	if err != nil {
		return fmt.Errorf("sqlite insert evaluation: %w", err)
	}
	j.observe(start)
	return nil
}

func (j *Journal) observe(start time.Time) {
	if j.OnCommit != nil {
		j.OnCommit(time.Since(start))
	}
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
