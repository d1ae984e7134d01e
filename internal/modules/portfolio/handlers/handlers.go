// Package handlers provides HTTP handlers for saved portfolios.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	persistence *portfolio.Persistence
	details     *portfolio.Details
	log         zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(persistence *portfolio.Persistence, details *portfolio.Details, log zerolog.Logger) *Handler {
	return &Handler{
		persistence: persistence,
		details:     details,
		log:         log.With().Str("handler", "portfolio").Logger(),
	}
}

// RebalanceRequest overrides the detail view's rebalance parameters.
// Absent fields keep their current value.
type RebalanceRequest struct {
	Method  *string  `json:"method"`
	Capital *float64 `json:"capital"`
	AsOf    *string  `json:"as_of"`
}

// HandleListPortfolios returns the portfolio directory
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	dir, err := h.persistence.List(r.Context())
	if err != nil {
		h.writeError(w, statusFor(err), backend.ErrorMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, dir)
}

// HandleGetPortfolio opens the detail view of a portfolio. The record is
// fetched on first open or with ?refresh=true.
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	d, created := h.details.Open(id)
	if created || refresh {
		if err := d.Load(r.Context()); err != nil {
			if created {
				h.details.Close(id)
			}
			h.writeError(w, statusFor(err), backend.ErrorMessage(err))
			return
		}
	}
	h.writeJSON(w, http.StatusOK, d.Snapshot())
}

// HandleDeletePortfolio deletes a portfolio and closes its detail view
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.persistence.Delete(r.Context(), id); err != nil {
		h.writeError(w, statusFor(err), backend.ErrorMessage(err))
		return
	}
	h.details.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleCloseView forgets the detail view without touching the record
func (h *Handler) HandleCloseView(w http.ResponseWriter, r *http.Request) {
	h.details.Close(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleRebalance requests a rebalance proposal. With ?wait=true it blocks
// until the backend answers.
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	var req RebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	d, err := h.detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), backend.ErrorMessage(err))
		return
	}

	params := d.Snapshot().Params
	if req.Method != nil {
		params.Method = *req.Method
	}
	if req.Capital != nil {
		if *req.Capital < 0 {
			h.writeError(w, http.StatusBadRequest, "capital must not be negative")
			return
		}
		params.Capital = *req.Capital
	}
	if req.AsOf != nil {
		params.AsOf = domain.Date{}
		if *req.AsOf != "" {
			asOf, err := domain.ParseDate(*req.AsOf)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			params.AsOf = asOf
		}
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait {
		err = d.RunRebalance(r.Context(), params)
	} else {
		err = d.StartRebalance(r.Context(), params)
	}
	if err != nil {
		h.writeError(w, statusFor(err), backend.ErrorMessage(err))
		return
	}
	h.writeJSON(w, asyncStatus(wait), d.Snapshot())
}

// HandleAcceptRebalance submits the pending proposal
func (h *Handler) HandleAcceptRebalance(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details.Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "Portfolio is not open")
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	var err error
	if wait {
		err = d.AcceptRebalance(r.Context())
	} else {
		err = d.StartAccept(r.Context())
	}
	if err != nil {
		h.writeError(w, statusFor(err), backend.ErrorMessage(err))
		return
	}
	h.writeJSON(w, asyncStatus(wait), d.Snapshot())
}

// HandleCancelRebalance drops the pending proposal
func (h *Handler) HandleCancelRebalance(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details.Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "Portfolio is not open")
		return
	}
	if err := d.CancelRebalance(); err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, d.Snapshot())
}

// HandleToggleReminder flips the reminder of one cadence. A failed toggle
// still answers 200; the error is scoped to the cadence in the snapshot.
func (h *Handler) HandleToggleReminder(w http.ResponseWriter, r *http.Request) {
	cadence, err := domain.ParseCadence(chi.URLParam(r, "cadence"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), backend.ErrorMessage(err))
		return
	}

	if err := d.Reminders().Toggle(r.Context(), cadence); err != nil {
		h.log.Debug().Err(err).Str("cadence", string(cadence)).Msg("Reminder toggle rejected")
	}
	h.writeJSON(w, http.StatusOK, d.Reminders().Snapshot())
}

// HandleDismissReminderError clears the error of one cadence
func (h *Handler) HandleDismissReminderError(w http.ResponseWriter, r *http.Request) {
	cadence, err := domain.ParseCadence(chi.URLParam(r, "cadence"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, ok := h.details.Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "Portfolio is not open")
		return
	}
	d.Reminders().DismissError(cadence)
	w.WriteHeader(http.StatusNoContent)
}

// detail returns the open detail view of id, opening and loading it first
// when needed
func (h *Handler) detail(ctx context.Context, id string) (*portfolio.Detail, error) {
	d, created := h.details.Open(id)
	if !created {
		return d, nil
	}
	if err := d.Load(ctx); err != nil {
		h.details.Close(id)
		return nil, err
	}
	return d, nil
}

func asyncStatus(wait bool) int {
	if wait {
		return http.StatusOK
	}
	return http.StatusAccepted
}

func statusFor(err error) int {
	switch {
	case backend.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, portfolio.ErrInvalidTransition),
		errors.Is(err, portfolio.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, portfolio.ErrMethodRequired):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
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
