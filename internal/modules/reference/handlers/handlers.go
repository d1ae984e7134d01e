// Package handlers provides HTTP handlers for reference data.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/folio/internal/modules/reference"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles reference data HTTP requests
type Handler struct {
	loader *reference.Loader
	log    zerolog.Logger
}

// NewHandler creates a new reference handler
func NewHandler(loader *reference.Loader, log zerolog.Logger) *Handler {
	return &Handler{
		loader: loader,
		log:    log.With().Str("handler", "reference").Logger(),
	}
}

// HandleGetCatalog returns the model catalogs, loading them on first use
func (h *Handler) HandleGetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := h.loader.Load(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(catalog); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// RegisterRoutes registers the reference routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reference", h.HandleGetCatalog)
}
