// Package handlers provides HTTP handlers for notification settings.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service *settings.Service
	log     zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// UpdateRequest is the body of PUT /settings
type UpdateRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Email      string `json:"email"`
}

// HandleGet handles GET /api/settings
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, backend.ErrorMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleUpdate handles PUT /api/settings
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.service.Update(r.Context(), req.TelegramID, req.Email)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, settings.ErrInvalidTelegramID) || errors.Is(err, settings.ErrInvalidEmail) {
			status = http.StatusBadRequest
		}
		h.writeError(w, status, backend.ErrorMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

// RegisterRoutes registers the settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/", h.HandleUpdate)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
