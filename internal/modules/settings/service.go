// Package settings edits the user's notification settings.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

const settingsTable = "user_settings"

var (
	// ErrInvalidTelegramID is returned for a non-positive telegram id
	ErrInvalidTelegramID = errors.New("telegram id must be positive")
	// ErrInvalidEmail is returned for an email without '@'
	ErrInvalidEmail = errors.New("email must contain '@'")
)

// Remote reads and writes the settings on the backend
type Remote interface {
	GetUser(ctx context.Context) (*domain.UserSettings, error)
	UpdateUser(ctx context.Context, update backend.UserUpdate) (*domain.UserSettings, error)
}

// Cache keeps the last known settings
type Cache interface {
	Store(table, key string, data interface{}, ttl time.Duration) error
	Get(table, key string, v interface{}) (found, fresh bool, err error)
}

// cachedSettings is the msgpack form of domain.UserSettings
type cachedSettings struct {
	ID         int              `msgpack:"id"`
	TelegramID int64            `msgpack:"telegram_id"`
	Email      string           `msgpack:"email"`
	UpdatedAt  domain.Timestamp `msgpack:"updated_at"`
}

// View is the settings as served. Stale is set when the backend was
// unreachable and the last cached settings were returned instead.
type View struct {
	Settings domain.UserSettings `json:"settings"`
	Stale    bool                `json:"stale"`
	Error    string              `json:"error,omitempty"`
}

// Service reads and updates the notification settings
type Service struct {
	remote Remote
	cache  Cache
	events events.Publisher
	log    zerolog.Logger
}

// NewService creates the settings service. cache may be nil.
func NewService(remote Remote, cache Cache, publisher events.Publisher, log zerolog.Logger) *Service {
	return &Service{
		remote: remote,
		cache:  cache,
		events: events.OrNop(publisher),
		log:    log.With().Str("service", "settings").Logger(),
	}
}

// Validate checks the values accepted by Update
func Validate(telegramID int64, email string) error {
	var errs []error
	if telegramID <= 0 {
		errs = append(errs, ErrInvalidTelegramID)
	}
	if !strings.Contains(email, "@") {
		errs = append(errs, ErrInvalidEmail)
	}
	return errors.Join(errs...)
}

// Get returns the current settings. On backend failure the cached copy is
// returned marked stale; the error is returned only without one.
func (s *Service) Get(ctx context.Context) (*View, error) {
	u, err := s.remote.GetUser(ctx)
	if err == nil {
		s.store(u)
		return &View{Settings: *u}, nil
	}

	s.log.Error().Err(err).Msg("Failed to fetch user settings")
	if s.cache == nil {
		return nil, err
	}
	var cached cachedSettings
	found, _, cerr := s.cache.Get(settingsTable, clientdata.KeyUser, &cached)
	if cerr != nil || !found {
		if cerr != nil {
			s.log.Warn().Err(cerr).Msg("Failed to read cached user settings")
		}
		return nil, err
	}
	return &View{
		Settings: domain.UserSettings{
			ID:         cached.ID,
			TelegramID: cached.TelegramID,
			Email:      cached.Email,
			UpdatedAt:  cached.UpdatedAt,
		},
		Stale: true,
		Error: backend.ErrorMessage(err),
	}, nil
}

// Update validates and saves the settings, returning the backend's
// confirmation
func (s *Service) Update(ctx context.Context, telegramID int64, email string) (*domain.UserSettings, error) {
	email = strings.TrimSpace(email)
	if err := Validate(telegramID, email); err != nil {
		return nil, err
	}

	u, err := s.remote.UpdateUser(ctx, backend.UserUpdate{TelegramID: telegramID, Email: email})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to save user settings")
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	s.store(u)
	s.log.Info().Int64("telegram_id", u.TelegramID).Msg("User settings updated")
	s.events.EmitTyped(events.UserSettingsUpdated, "settings", &events.UserSettingsUpdatedData{
		TelegramID: u.TelegramID,
		Email:      u.Email,
	})
	return u, nil
}

func (s *Service) store(u *domain.UserSettings) {
	if s.cache == nil {
		return
	}
	cached := cachedSettings{ID: u.ID, TelegramID: u.TelegramID, Email: u.Email, UpdatedAt: u.UpdatedAt}
	if err := s.cache.Store(settingsTable, clientdata.KeyUser, cached, clientdata.TTLUserSettings); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache user settings")
	}
}
