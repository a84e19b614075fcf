package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"otc-signalbot/internal/model"
)

// Totals are the all-time counts in the journal.
type Totals struct {
	Signals int `json:"signals"`
	Wins    int `json:"wins"`
	Losses  int `json:"losses"`
}

// RecentEvaluations returns up to limit evaluations, newest first.
func (j *Journal) RecentEvaluations(ctx context.Context, limit int) ([]model.Evaluation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT data FROM evaluations
		ORDER BY completed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query evaluations: %w", err)
	}
	defer rows.Close()

	var out []model.Evaluation
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite scan evaluation: %w", err)
		}
		var ev model.Evaluation
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Totals counts signals and evaluation outcomes across all sessions.
func (j *Journal) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals`).Scan(&t.Signals); err != nil {
		return t, fmt.Errorf("sqlite count signals: %w", err)
	}
	err := j.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN outcome != ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome  = ? THEN 1 ELSE 0 END), 0)
		FROM evaluations
	`, string(model.OutcomeLoss), string(model.OutcomeLoss)).Scan(&t.Wins, &t.Losses)
	if err != nil {
		return t, fmt.Errorf("sqlite count outcomes: %w", err)
	}
	return t, nil
}
