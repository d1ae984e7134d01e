package di

import (
	"fmt"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/modules/history"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and adds them to the
// scheduler. The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{
		CacheCleanup:     clientdata.NewCleanupJob(container.ClientDataRepo, log),
		HistoryRetention: history.NewRetentionJob(container.HistoryRepo, cfg.History.RetentionDays, log),
		CheckDatabases:   scheduler.NewCheckDatabasesJob(container.Databases(), log),
		Maintenance:      reliability.NewMaintenanceJob(container.Databases(), cfg.DataDir, log),
	}
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
	}

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedule.CacheCleanup, instances.CacheCleanup},
		{cfg.Schedule.HistoryRetention, instances.HistoryRetention},
		{cfg.Schedule.CheckDatabases, instances.CheckDatabases},
		{cfg.Schedule.Maintenance, instances.Maintenance},
	}
	if instances.Backup != nil {
		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Schedule.Backup, instances.Backup})
	}

	for _, j := range jobs {
		if err := container.Scheduler.AddJob(j.schedule, j.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", j.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(jobs)).Msg("Jobs registered")
	return instances, nil
}
