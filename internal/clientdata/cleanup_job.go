package clientdata

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob drops cached backend responses that expired more than the
// grace period ago. Younger expired rows stay as the offline fallback.
type CleanupJob struct {
	repo  *Repository
	grace time.Duration
	log   zerolog.Logger
}

// NewCleanupJob creates the job with the default StaleGrace
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:  repo,
		grace: StaleGrace,
		log:   log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Name returns the scheduler name
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}

// Run executes the job
func (j *CleanupJob) Run() error {
	deleted, err := j.repo.DeleteAllExpired(j.grace)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to purge cached backend responses")
		return err
	}

	perTable := zerolog.Dict()
	var total int64
	for table, n := range deleted {
		perTable.Int64(table, n)
		total += n
	}
	if total == 0 {
		j.log.Debug().Msg("No cached responses past the grace period")
		return nil
	}
	j.log.Info().Dict("tables", perTable).Int64("deleted", total).Msg("Purged cached backend responses")
	return nil
}
