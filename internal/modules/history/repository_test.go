package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE journal (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		portfolio_id TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL,
		payload BLOB,
		created_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	return db
}

func TestRepository_AppendAndRecent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := repo.Append(ctx, Entry{Kind: "PORTFOLIO_SAVED", PortfolioID: "p1", Summary: "Saved", CreatedAt: base,
		Payload: map[string]any{"name": "Growth", "capital": 10000.0}})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = repo.Append(ctx, Entry{Kind: "USER_SETTINGS_UPDATED", Summary: "Settings", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = repo.Append(ctx, Entry{Kind: "REMINDER_TOGGLED", PortfolioID: "p1", Summary: "Toggled", CreatedAt: base.Add(2 * time.Minute)})
	require.NoError(t, err)

	entries, err := repo.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "REMINDER_TOGGLED", entries[0].Kind)
	assert.Equal(t, "PORTFOLIO_SAVED", entries[2].Kind)
	assert.Equal(t, "Growth", entries[2].Payload["name"])
	assert.Equal(t, 10000.0, entries[2].Payload["capital"])
	assert.True(t, entries[2].CreatedAt.Equal(base))

	entries, err = repo.Recent(ctx, Query{Limit: 1, PortfolioID: "p1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Toggled", entries[0].Summary)
}

func TestRetentionJob(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := repo.Append(ctx, Entry{Kind: "a", Summary: "old", CreatedAt: now.AddDate(0, 0, -40)})
	require.NoError(t, err)
	_, err = repo.Append(ctx, Entry{Kind: "b", Summary: "new", CreatedAt: now.AddDate(0, 0, -5)})
	require.NoError(t, err)

	require.NoError(t, NewRetentionJob(repo, 0, zerolog.Nop()).Run())
	entries, err := repo.Recent(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	job := NewRetentionJob(repo, 30, zerolog.Nop())
	assert.Equal(t, "history_retention", job.Name())
	require.NoError(t, job.Run())

	entries, err = repo.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Summary)
}
