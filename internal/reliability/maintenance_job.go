package reliability

import (
	"fmt"
	"sort"

	"github.com/aristath/folio/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// lowDiskBytes is the free space below which maintenance warns
const lowDiskBytes = 1 << 30

// MaintenanceJob vacuums and checkpoints the local databases and checks
// free disk space
type MaintenanceJob struct {
	databases map[string]*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceJob creates the job
func NewMaintenanceJob(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Run executes the job. A failed VACUUM is logged and the next database
// is still processed.
func (j *MaintenanceJob) Run() error {
	if usage, err := disk.Usage(j.dataDir); err != nil {
		j.log.Warn().Err(err).Msg("Failed to read disk usage")
	} else if usage.Free < lowDiskBytes {
		j.log.Warn().
			Uint64("free_bytes", usage.Free).
			Float64("used_percent", usage.UsedPercent).
			Msg("Disk space running low")
	}

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			continue
		}
		if err := j.vacuum(db, name); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("VACUUM failed")
		}
	}
	return nil
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

func (j *MaintenanceJob) vacuum(db *database.DB, name string) error {
	before, err := db.GetStats()
	if err != nil {
		return err
	}
	if _, err := db.Conn().Exec("VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint after VACUUM failed")
	}
	after, err := db.GetStats()
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", name).
		Int64("size_before_bytes", before.PageCount*before.PageSize).
		Int64("size_after_bytes", after.PageCount*after.PageSize).
		Int64("wal_bytes", after.WALSizeBytes).
		Msg("VACUUM completed")
	return nil
}
