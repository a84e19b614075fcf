// Package api provides the read-only HTTP API of the signal bot.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"otc-signalbot/internal/model"
	"otc-signalbot/internal/session"
	sqlitestore "otc-signalbot/internal/store/sqlite"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// SessionView exposes the live session state.
type SessionView interface {
	Snapshot() session.Snapshot
}

// History exposes the persisted journal.
type History interface {
	RecentEvaluations(ctx context.Context, limit int) ([]model.Evaluation, error)
	Totals(ctx context.Context) (sqlitestore.Totals, error)
}

// Deps wires the router. History may be nil.
type Deps struct {
	Session SessionView
	History History
}

type tallyResponse struct {
	Session session.Snapshot    `json:"session"`
	Journal *sqlitestore.Totals `json:"journal,omitempty"`
}

// NewRouter sets up HTTP routes for the API server.
func NewRouter(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// GET /api/v1/tally
	mux.HandleFunc("/api/v1/tally", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		resp := tallyResponse{Session: deps.Session.Snapshot()}
		if deps.History != nil {
			totals, err := deps.History.Totals(r.Context())
			if err != nil {
				log.Printf("[api] journal totals: %v", err)
				writeError(w, http.StatusInternalServerError, "journal unavailable")
				return
			}
			resp.Journal = &totals
		}
		writeJSON(w, http.StatusOK, resp)
	})

	// GET /api/v1/evaluations?limit=N
	mux.HandleFunc("/api/v1/evaluations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.History == nil {
			writeError(w, http.StatusNotFound, "journal disabled")
			return
		}
		limit := defaultLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxLimit)
		}
		evs, err := deps.History.RecentEvaluations(r.Context(), limit)
		if err != nil {
			log.Printf("[api] recent evaluations: %v", err)
			writeError(w, http.StatusInternalServerError, "journal unavailable")
			return
		}
		if evs == nil {
			evs = []model.Evaluation{}
		}
		writeJSON(w, http.StatusOK, evs)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
