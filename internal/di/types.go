// Package di wires the application's dependencies.
package di

import (
	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/charts"
	"github.com/aristath/folio/internal/modules/history"
	"github.com/aristath/folio/internal/modules/optimization"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/reference"
	"github.com/aristath/folio/internal/modules/settings"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
)

// Container holds all dependencies for the application. It is created
// by Wire and handed to the server and the CLI.
type Container struct {
	// Databases
	CacheDB   *database.DB // Stale-fallback cache (portfolio directory, user settings)
	HistoryDB *database.DB // Activity journal

	// Clients
	Backend *backend.Client

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	ClientDataRepo *clientdata.Repository
	HistoryRepo    *history.Repository

	// Services
	ReferenceLoader *reference.Loader
	SessionCharts   *charts.Deriver
	Session         *optimization.Session
	Persistence     *portfolio.Persistence
	Details         *portfolio.Details
	SettingsService *settings.Service
	HistoryRecorder *history.Recorder
	BackupService   *reliability.BackupService // nil when backups are not configured

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs. Backup is nil when
// backups are not configured.
type JobInstances struct {
	CacheCleanup     scheduler.Job
	HistoryRetention scheduler.Job
	CheckDatabases   scheduler.Job
	Maintenance      scheduler.Job
	Backup           scheduler.Job
}

// Databases returns the open databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	dbs := make(map[string]*database.DB, 2)
	if c.CacheDB != nil {
		dbs["cache"] = c.CacheDB
	}
	if c.HistoryDB != nil {
		dbs["history"] = c.HistoryDB
	}
	return dbs
}

// Close waits for background work, stops the journal writer and closes
// the databases.
func (c *Container) Close() {
	if c.Session != nil {
		c.Session.Wait()
	}
	if c.Details != nil {
		c.Details.Wait()
	}
	if c.HistoryRecorder != nil {
		c.HistoryRecorder.Stop()
	}
	closeDatabases(c.CacheDB, c.HistoryDB)
}

func closeDatabases(dbs ...*database.DB) {
	for _, db := range dbs {
		if db != nil {
			_ = db.Close()
		}
	}
}
