// Package handlers provides HTTP handlers for the optimization session.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/optimization"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// Saver persists the session result as a portfolio
type Saver interface {
	Save(ctx context.Context, name, notes string) (*domain.PortfolioRecord, error)
}

// Handler handles optimization session HTTP requests
type Handler struct {
	session *optimization.Session
	saver   Saver
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(session *optimization.Session, saver Saver, log zerolog.Logger) *Handler {
	return &Handler{
		session: session,
		saver:   saver,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

// UpdateSessionRequest carries the parameters to change. Absent fields are
// left untouched; an empty snapshot_date clears the date.
type UpdateSessionRequest struct {
	Model        *string  `json:"model"`
	RiskModel    *string  `json:"risk_model"`
	Capital      *float64 `json:"capital"`
	SnapshotDate *string  `json:"snapshot_date"`
}

// SaveRequest is the body of POST /session/save
type SaveRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// HandleGetSession returns the session snapshot
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// HandleUpdateSession changes session parameters
func (h *Handler) HandleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Model != nil {
		if err := h.session.SetModel(*req.Model); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.RiskModel != nil {
		if err := h.session.SetRiskModel(*req.RiskModel); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Capital != nil {
		if err := h.session.SetCapital(*req.Capital); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.SnapshotDate != nil {
		if *req.SnapshotDate == "" {
			h.session.ClearSnapshotDate()
		} else {
			d, err := domain.ParseDate(*req.SnapshotDate)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.session.SetSnapshotDate(d)
		}
	}

	h.writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// HandleOptimize starts an optimization. With ?wait=true it blocks until
// the backend answers.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	var err error
	if wait {
		err = h.session.Run(r.Context())
	} else {
		err = h.session.Start(r.Context())
	}
	if err != nil {
		h.writeError(w, statusFor(err), backend.ErrorMessage(err))
		return
	}

	status := http.StatusAccepted
	if wait {
		status = http.StatusOK
	}
	h.writeJSON(w, status, h.session.Snapshot())
}

// HandleDiscardResult clears the session result
func (h *Handler) HandleDiscardResult(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Discard(); err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSave stores the session result as a named portfolio
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := h.saver.Save(r.Context(), req.Name, req.Notes)
	if err != nil {
		h.writeError(w, statusFor(err), backend.ErrorMessage(err))
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, optimization.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, optimization.ErrMissingParameters),
		errors.Is(err, portfolio.ErrNoResult),
		errors.Is(err, portfolio.ErrNameRequired):
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
