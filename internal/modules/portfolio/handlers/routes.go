package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleListPortfolios)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetPortfolio) // ?refresh=true reloads the record
			r.Delete("/", h.HandleDeletePortfolio)
			r.Delete("/view", h.HandleCloseView)

			r.Post("/rebalance", h.HandleRebalance) // ?wait=true blocks until done
			r.Post("/rebalance/accept", h.HandleAcceptRebalance)
			r.Post("/rebalance/cancel", h.HandleCancelRebalance)

			r.Post("/reminders/{cadence}/toggle", h.HandleToggleReminder)
			r.Delete("/reminders/{cadence}/error", h.HandleDismissReminderError)
		})
	})
}
