// Package handlers provides HTTP handlers for the activity journal.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aristath/folio/internal/modules/history"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxLimit = 500

// Handler handles journal HTTP requests
type Handler struct {
	repo *history.Repository
	log  zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(repo *history.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "history").Logger(),
	}
}

// HandleRecent handles GET /api/history?limit=&portfolio_id=
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	q := history.Query{PortfolioID: r.URL.Query().Get("portfolio_id")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		q.Limit = min(limit, maxLimit)
	}

	entries, err := h.repo.Recent(r.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read journal")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read history"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// RegisterRoutes registers the history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.HandleRecent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
