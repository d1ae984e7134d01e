package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aristath/folio/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.HistoryDB)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "cache.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "history.db"))
	assert.Len(t, container.Databases(), 2)

	var n int
	require.NoError(t, container.HistoryDB.Conn().QueryRow(`SELECT COUNT(*) FROM journal`).Scan(&n))
	require.NoError(t, container.CacheDB.Conn().QueryRow(`SELECT COUNT(*) FROM portfolio_directory`).Scan(&n))
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Backend)
	assert.NotNil(t, container.Session)
	assert.NotNil(t, container.Persistence)
	assert.NotNil(t, container.Details)
	assert.NotNil(t, container.SettingsService)
	assert.NotNil(t, container.HistoryRecorder)
	assert.Nil(t, container.BackupService)

	assert.NotNil(t, jobs.CacheCleanup)
	assert.NotNil(t, jobs.HistoryRetention)
	assert.NotNil(t, jobs.CheckDatabases)
	assert.NotNil(t, jobs.Maintenance)
	assert.Nil(t, jobs.Backup)

	assert.Equal(t, []string{"check_databases", "client_data_cleanup", "history_retention", "maintenance"}, container.Scheduler.Available())
	assert.Equal(t, cfg.Session.DefaultCapital, container.Session.DefaultCapital())
}

func TestWire_BackupsEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Bucket = "folio-backups"
	cfg.Backup.Region = "us-east-1"
	cfg.Backup.Endpoint = "http://localhost:9000"
	cfg.Backup.AccessKeyID = "key"
	cfg.Backup.SecretAccessKey = "secret"

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.BackupService)
	require.NotNil(t, jobs.Backup)
	assert.Contains(t, container.Scheduler.Available(), "backup")
}

func TestRegisterJobs_NilContainer(t *testing.T) {
	_, err := RegisterJobs(nil, testConfig(t), zerolog.Nop())
	assert.Error(t, err)
}
