// Package portfolio saves, lists and manages portfolios stored by the
// backend, including the rebalance workflow of a single portfolio.
package portfolio

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoResult is returned when there is no optimization result to save
	ErrNoResult = errors.New("no optimization result to save")
	// ErrNameRequired is returned when saving without a name
	ErrNameRequired = errors.New("portfolio name is required")
)

const directoryTable = "portfolio_directory"

// ResultSource is the optimization session being saved
type ResultSource interface {
	Parameters() domain.SessionParameters
	Result() *domain.OptimizationResult
	DefaultCapital() float64
}

// Store is the remote portfolio store
type Store interface {
	SavePortfolio(ctx context.Context, rec *domain.PortfolioRecord) (*domain.PortfolioRecord, error)
	ListPortfolios(ctx context.Context) ([]domain.PortfolioRecord, error)
	DeletePortfolio(ctx context.Context, id string) error
}

// Cache keeps the last directory listing
type Cache interface {
	Store(table, key string, data interface{}, ttl time.Duration) error
	Get(table, key string, v interface{}) (found, fresh bool, err error)
	Expire(table, key string) error
}

// Summary is one entry of the portfolio directory
type Summary struct {
	ID        string           `json:"id" msgpack:"id"`
	Name      string           `json:"name" msgpack:"name"`
	CreatedAt domain.Timestamp `json:"created_at" msgpack:"created_at"`
	EndDate   domain.Date      `json:"end_date" msgpack:"end_date"`
	Capital   float64          `json:"capital" msgpack:"capital"`
	Model     string           `json:"model" msgpack:"model"`
	RiskModel string           `json:"optimizer" msgpack:"optimizer"`
	Positions int              `json:"positions" msgpack:"positions"`
}

// Directory is the portfolio listing. Stale is set when the backend was
// unreachable and the last cached listing was returned instead.
type Directory struct {
	Portfolios []Summary `json:"portfolios"`
	Stale      bool      `json:"stale"`
	Error      string    `json:"error,omitempty"`
}

// Persistence saves session results and manages the portfolio directory
type Persistence struct {
	source ResultSource
	store  Store
	cache  Cache
	events events.Publisher
	log    zerolog.Logger
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group
}

// NewPersistence creates the persistence service. cache may be nil.
func NewPersistence(source ResultSource, store Store, cache Cache, publisher events.Publisher, ttl time.Duration, log zerolog.Logger) *Persistence {
	if ttl <= 0 {
		ttl = clientdata.TTLPortfolioDirectory
	}
	return &Persistence{
		source: source,
		store:  store,
		cache:  cache,
		events: events.OrNop(publisher),
		log:    log.With().Str("service", "portfolio_persistence").Logger(),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Save stores the session's current result under name. Nothing is kept
// locally; the stored record is returned.
func (p *Persistence) Save(ctx context.Context, name, notes string) (*domain.PortfolioRecord, error) {
	result := p.source.Result()
	if result == nil {
		return nil, ErrNoResult
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	params := p.source.Parameters()
	rec := &domain.PortfolioRecord{
		Name:       name,
		Notes:      notes,
		CreatedAt:  domain.Timestamp{Time: p.now().UTC()},
		EndDate:    params.SnapshotDate,
		Capital:    params.EffectiveCapital(p.source.DefaultCapital()),
		Allocation: result.Allocation,
		Stats:      result.Stats,
		Model:      params.Model,
		RiskModel:  params.RiskModel,
		Tickers:    result.Tickers,
	}

	saved, err := p.store.SavePortfolio(ctx, rec)
	if err != nil {
		p.log.Error().Err(err).Str("name", name).Msg("Failed to save portfolio")
		return nil, err
	}

	p.invalidate()
	p.log.Info().
		Str("portfolio_id", saved.ID).
		Str("name", saved.Name).
		Int("positions", len(saved.Allocation.Stocks)).
		Msg("Portfolio saved")
	p.events.EmitTyped(events.PortfolioSaved, "portfolio", &events.PortfolioSavedData{
		PortfolioID: saved.ID,
		Name:        saved.Name,
		Positions:   len(saved.Allocation.Stocks),
		Capital:     saved.Capital,
	})
	return saved, nil
}

// List returns the portfolio directory. Concurrent callers share one
// backend request, which is not cancelled when one of them gives up.
// When the backend fails, the last cached listing is returned marked
// stale; the error is returned only without a cache.
func (p *Persistence) List(ctx context.Context) (*Directory, error) {
	v, err, _ := p.group.Do("list", func() (interface{}, error) {
		return p.fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	dir := v.(*Directory)
	portfolios := make([]Summary, len(dir.Portfolios))
	copy(portfolios, dir.Portfolios)
	return &Directory{
		Portfolios: portfolios,
		Stale:      dir.Stale,
		Error:      dir.Error,
	}, nil
}

func (p *Persistence) fetch(ctx context.Context) (*Directory, error) {
	records, err := p.store.ListPortfolios(ctx)
	if err == nil {
		summaries := make([]Summary, 0, len(records))
		for i := range records {
			summaries = append(summaries, summarize(&records[i]))
		}
		if p.cache != nil {
			if cerr := p.cache.Store(directoryTable, clientdata.KeyAll, summaries, p.ttl); cerr != nil {
				p.log.Warn().Err(cerr).Msg("Failed to cache portfolio directory")
			}
		}
		return &Directory{Portfolios: summaries}, nil
	}

	p.log.Error().Err(err).Msg("Failed to list portfolios")
	if p.cache == nil {
		return nil, err
	}
	var cached []Summary
	found, fresh, cerr := p.cache.Get(directoryTable, clientdata.KeyAll, &cached)
	if cerr != nil || !found {
		if cerr != nil {
			p.log.Warn().Err(cerr).Msg("Failed to read cached portfolio directory")
		}
		return nil, err
	}
	p.log.Warn().Bool("fresh", fresh).Int("portfolios", len(cached)).Msg("Serving cached portfolio directory")
	return &Directory{Portfolios: cached, Stale: true, Error: backend.ErrorMessage(err)}, nil
}

// Delete removes a portfolio
func (p *Persistence) Delete(ctx context.Context, id string) error {
	if err := p.store.DeletePortfolio(ctx, id); err != nil {
		p.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to delete portfolio")
		return err
	}
	p.invalidate()
	p.log.Info().Str("portfolio_id", id).Msg("Portfolio deleted")
	p.events.EmitTyped(events.PortfolioDeleted, "portfolio", &events.PortfolioDeletedData{PortfolioID: id})
	return nil
}

// invalidate marks the cached directory stale; it still serves as fallback
func (p *Persistence) invalidate() {
	if p.cache == nil {
		return
	}
	if err := p.cache.Expire(directoryTable, clientdata.KeyAll); err != nil {
		p.log.Warn().Err(err).Msg("Failed to invalidate portfolio directory cache")
	}
}

func summarize(rec *domain.PortfolioRecord) Summary {
	return Summary{
		ID:        rec.ID,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt,
		EndDate:   rec.EndDate,
		Capital:   rec.Capital,
		Model:     rec.Model,
		RiskModel: rec.RiskModel,
		Positions: len(rec.Allocation.Stocks),
	}
}
