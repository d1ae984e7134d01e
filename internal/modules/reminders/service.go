// Package reminders toggles the review reminders of a portfolio, one
// reminder per cadence.
package reminders

import (
	"context"
	"sync"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

// Updater flips a reminder's active flag remotely
type Updater interface {
	UpdateReminder(ctx context.Context, portfolioID, reminderID string, active bool) (*domain.Reminder, error)
}

// Entry is the state of one cadence
type Entry struct {
	Reminder domain.Reminder `json:"reminder"`
	Pending  bool            `json:"pending"`
	Error    string          `json:"error,omitempty"`
}

// Snapshot is a copy of the reminder state of a portfolio
type Snapshot struct {
	Loaded    bool                         `json:"loaded"`
	LoadError string                       `json:"load_error,omitempty"`
	Cadences  map[domain.CadenceType]Entry `json:"cadences"`
}

// Service holds the reminders of one portfolio. Toggles of distinct
// cadences run independently; errors are scoped to their cadence.
type Service struct {
	portfolioID string
	updater     Updater
	events      events.Publisher
	log         zerolog.Logger

	mu        sync.Mutex
	reminders map[domain.CadenceType]domain.Reminder
	errs      map[domain.CadenceType]string
	pending   map[domain.CadenceType]int
	loaded    bool
	loadErr   string
}

// NewService creates the reminder service of a portfolio
func NewService(portfolioID string, updater Updater, publisher events.Publisher, log zerolog.Logger) *Service {
	return &Service{
		portfolioID: portfolioID,
		updater:     updater,
		events:      events.OrNop(publisher),
		log:         log.With().Str("service", "reminders").Str("portfolio_id", portfolioID).Logger(),
		reminders:   make(map[domain.CadenceType]domain.Reminder),
		errs:        make(map[domain.CadenceType]string),
		pending:     make(map[domain.CadenceType]int),
	}
}

// Replace installs a freshly loaded reminder list
func (s *Service) Replace(list []domain.Reminder) {
	reduced := domain.ReduceReminders(list)

	s.mu.Lock()
	s.reminders = reduced
	s.errs = make(map[domain.CadenceType]string)
	s.loaded = true
	s.loadErr = ""
	s.mu.Unlock()
}

// SetLoadError records a failed reminder load
func (s *Service) SetLoadError(err error) {
	s.mu.Lock()
	s.loadErr = backend.ErrorMessage(err)
	s.mu.Unlock()
}

// Toggle sends the inverse of the cadence's active flag. A cadence without
// a reminder is a no-op. On failure the entry is unchanged and the error
// is kept for that cadence until its next toggle or DismissError.
func (s *Service) Toggle(ctx context.Context, cadence domain.CadenceType) error {
	s.mu.Lock()
	current, ok := s.reminders[cadence]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.pending[cadence]++
	delete(s.errs, cadence)
	s.mu.Unlock()

	want := !current.Active
	updated, err := s.updater.UpdateReminder(ctx, s.portfolioID, current.ID, want)

	s.mu.Lock()
	s.pending[cadence]--
	if s.pending[cadence] <= 0 {
		delete(s.pending, cadence)
	}
	if err != nil {
		s.errs[cadence] = backend.ErrorMessage(err)
	} else {
		r := *updated
		if r.Type == "" {
			r.Type = cadence
		}
		if r.ID == "" {
			r.ID = current.ID
		}
		s.reminders[cadence] = r
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("cadence", string(cadence)).Msg("Failed to toggle reminder")
		s.events.EmitTyped(events.ReminderToggleFailed, "reminders", &events.ReminderToggleFailedData{
			PortfolioID: s.portfolioID,
			Cadence:     string(cadence),
			Error:       backend.ErrorMessage(err),
		})
		return err
	}

	s.log.Info().Str("cadence", string(cadence)).Bool("active", updated.Active).Msg("Reminder toggled")
	s.events.EmitTyped(events.ReminderToggled, "reminders", &events.ReminderToggledData{
		PortfolioID: s.portfolioID,
		Cadence:     string(cadence),
		Active:      updated.Active,
	})
	return nil
}

// DismissError clears the error of a cadence
func (s *Service) DismissError(cadence domain.CadenceType) {
	s.mu.Lock()
	delete(s.errs, cadence)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Loaded:    s.loaded,
		LoadError: s.loadErr,
		Cadences:  make(map[domain.CadenceType]Entry, len(s.reminders)),
	}
	for c, r := range s.reminders {
		snap.Cadences[c] = Entry{
			Reminder: r,
			Pending:  s.pending[c] > 0,
			Error:    s.errs[c],
		}
	}
	return snap
}
