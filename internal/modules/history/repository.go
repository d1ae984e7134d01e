// Package history keeps a local journal of completed user actions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Entry is one journal row
type Entry struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	PortfolioID string         `json:"portfolio_id,omitempty"`
	Summary     string         `json:"summary"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Query filters Recent
type Query struct {
	Limit       int
	PortfolioID string
}

// DefaultLimit applies when a query has no positive limit
const DefaultLimit = 50

// Repository reads and writes the journal table of history.db
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a journal repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Append stores e with a fresh id and, when unset, the current time
func (r *Repository) Append(ctx context.Context, e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	var blob []byte
	if len(e.Payload) > 0 {
		var err error
		if blob, err = msgpack.Marshal(e.Payload); err != nil {
			return Entry{}, fmt.Errorf("failed to marshal journal payload: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO journal (id, kind, portfolio_id, summary, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.PortfolioID, e.Summary, blob, e.CreatedAt.UnixMilli())
	if err != nil {
		return Entry{}, fmt.Errorf("failed to append journal entry: %w", err)
	}
	return e, nil
}

// Recent lists entries newest first
func (r *Repository) Recent(ctx context.Context, q Query) ([]Entry, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	query := `SELECT id, kind, portfolio_id, summary, payload, created_at FROM journal`
	args := []any{}
	if q.PortfolioID != "" {
		query += ` WHERE portfolio_id = ?`
		args = append(args, q.PortfolioID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, q.Limit)
	for rows.Next() {
		var (
			e       Entry
			blob    []byte
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.PortfolioID, &e.Summary, &blob, &created); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if len(blob) > 0 {
			if err := msgpack.Unmarshal(blob, &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload of %s: %w", e.ID, err)
			}
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes entries created before now - age
func (r *Repository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := r.now().Add(-age).UnixMilli()
	result, err := r.db.ExecContext(ctx, `DELETE FROM journal WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old journal entries: %w", err)
	}
	return result.RowsAffected()
}
