package di

import (
	"context"
	"fmt"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/charts"
	"github.com/aristath/folio/internal/modules/history"
	"github.com/aristath/folio/internal/modules/optimization"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/reference"
	"github.com/aristath/folio/internal/modules/settings"
	"github.com/aristath/folio/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients, repositories and services
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.Backend = backend.NewClient(cfg.Backend.URL, log,
		backend.WithTimeout(cfg.Backend.GetTimeout()),
		backend.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.Burst),
	)

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.HistoryRepo = history.NewRepository(container.HistoryDB.Conn())

	container.ReferenceLoader = reference.NewLoader(container.Backend, container.EventManager, log)

	container.SessionCharts = charts.NewDeriver("session", container.Backend, container.EventManager, log)
	container.Session = optimization.NewSession(
		container.Backend,
		container.SessionCharts,
		container.EventManager,
		log,
		optimization.WithCatalog(container.ReferenceLoader),
		optimization.WithDefaultCapital(cfg.Session.DefaultCapital),
	)

	container.Persistence = portfolio.NewPersistence(
		container.Session,
		container.Backend,
		container.ClientDataRepo,
		container.EventManager,
		cfg.Cache.GetPortfolioListTTL(),
		log,
	)
	container.Details = portfolio.NewDetails(container.Backend, container.Backend, container.EventManager, log)

	container.SettingsService = settings.NewService(container.Backend, container.ClientDataRepo, container.EventManager, log)

	container.HistoryRecorder = history.NewRecorder(container.HistoryRepo, container.EventBus, log)
	container.HistoryRecorder.Start()

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Client(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			store,
			map[string]*database.DB{"history": container.HistoryDB},
			cfg.DataDir,
			container.EventManager,
			log,
		)
	}

	log.Info().
		Str("backend", container.Backend.BaseURL()).
		Bool("backups", container.BackupService != nil).
		Msg("Services initialized")
	return nil
}
