// Package reference loads the model and risk-model catalogs offered by the backend.
package reference

import (
	"context"
	"slices"
	"sync"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CatalogSource lists the selectable ids
type CatalogSource interface {
	ListModels(ctx context.Context) ([]string, error)
	ListRiskModels(ctx context.Context) ([]string, error)
}

// Catalog is the loaded reference data. Lists keep backend order.
type Catalog struct {
	Models     []string `json:"models"`
	RiskModels []string `json:"risk_models"`
	Loaded     bool     `json:"loaded"`
}

// Loader fetches the catalog once per lifetime. A failed fetch leaves its
// list empty and is only logged.
type Loader struct {
	source CatalogSource
	events events.Publisher
	log    zerolog.Logger

	loadMu  sync.Mutex // serializes the first load
	mu      sync.RWMutex
	catalog Catalog
}

// NewLoader creates a reference data loader
func NewLoader(source CatalogSource, publisher events.Publisher, log zerolog.Logger) *Loader {
	return &Loader{
		source: source,
		events: events.OrNop(publisher),
		log:    log.With().Str("service", "reference").Logger(),
	}
}

// Load fetches both lists concurrently on first use and returns the
// catalog. Later calls return the stored catalog without fetching.
func (l *Loader) Load(ctx context.Context) Catalog {
	l.loadMu.Lock()
	defer l.loadMu.Unlock()

	if c := l.Catalog(); c.Loaded {
		return c
	}

	var (
		models, riskModels       []string
		modelsErr, riskModelsErr error
		g                        errgroup.Group
	)
	g.Go(func() error {
		models, modelsErr = l.source.ListModels(ctx)
		if modelsErr != nil {
			l.log.Error().Err(modelsErr).Msg("Failed to load models")
			models = nil
		}
		return nil
	})
	g.Go(func() error {
		riskModels, riskModelsErr = l.source.ListRiskModels(ctx)
		if riskModelsErr != nil {
			l.log.Error().Err(riskModelsErr).Msg("Failed to load risk models")
			riskModels = nil
		}
		return nil
	})
	_ = g.Wait()

	catalog := Catalog{
		Models:     nonNil(models),
		RiskModels: nonNil(riskModels),
		Loaded:     true,
	}
	l.mu.Lock()
	l.catalog = catalog
	l.mu.Unlock()

	l.log.Info().
		Int("models", len(catalog.Models)).
		Int("risk_models", len(catalog.RiskModels)).
		Msg("Reference data loaded")

	l.events.EmitTyped(events.ReferenceDataLoaded, "reference", &events.ReferenceDataLoadedData{
		Models:          len(catalog.Models),
		RiskModels:      len(catalog.RiskModels),
		ModelsError:     backend.ErrorMessage(modelsErr),
		RiskModelsError: backend.ErrorMessage(riskModelsErr),
	})

	return l.Catalog()
}

// Catalog returns a copy of the current catalog
func (l *Loader) Catalog() Catalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Catalog{
		Models:     slices.Clone(l.catalog.Models),
		RiskModels: slices.Clone(l.catalog.RiskModels),
		Loaded:     l.catalog.Loaded,
	}
}

// HasModel reports whether id is a known model
func (l *Loader) HasModel(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.catalog.Models, id)
}

// HasRiskModel reports whether id is a known risk model
func (l *Loader) HasRiskModel(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.catalog.RiskModels, id)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
