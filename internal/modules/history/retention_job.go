package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetentionJob deletes journal entries older than the retention period
type RetentionJob struct {
	repo      *Repository
	retention time.Duration
	log       zerolog.Logger
}

// NewRetentionJob creates the job. A non-positive retention keeps everything.
func NewRetentionJob(repo *Repository, retentionDays int, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.With().Str("job", "history_retention").Logger(),
	}
}

// Run executes the job
func (j *RetentionJob) Run() error {
	if j.retention <= 0 {
		return nil
	}
	deleted, err := j.repo.DeleteOlderThan(context.Background(), j.retention)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune journal")
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Pruned journal entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging
func (j *RetentionJob) Name() string {
	return "history_retention"
}
