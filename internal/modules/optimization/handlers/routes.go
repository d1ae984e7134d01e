package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the session routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.HandleGetSession)
		r.Put("/", h.HandleUpdateSession)
		r.Post("/optimize", h.HandleOptimize)      // ?wait=true blocks until done
		r.Delete("/result", h.HandleDiscardResult) // Rejected while running
		r.Post("/save", h.HandleSave)
	})
}
