package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/swooby/alfredd/internal/core/ingest"
)

// HistoryAdapter implements ingest.HistoryStore over the
// coalesce_history table. Saves are full-snapshot overwrites inside one
// transaction, so a Load racing the first Save sees either the old
// snapshot or the new one, never a mix.
type HistoryAdapter struct {
	db *sql.DB
}

// NewHistoryAdapter wraps an existing connection pool (shared with the
// event adapter).
func NewHistoryAdapter(db *sql.DB) *HistoryAdapter {
	return &HistoryAdapter{db: db}
}

// Load returns the persisted snapshot, least recently updated first.
func (a *HistoryAdapter) Load(ctx context.Context) ([]ingest.HistoryEntry, error) {
	rows, err := a.db.QueryContext(ctx, queryLoadHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to query coalesce history: %w", err)
	}
	defer rows.Close()

	var entries []ingest.HistoryEntry
	for rows.Next() {
		var entry ingest.HistoryEntry
		if err := rows.Scan(&entry.Key, &entry.Fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan coalesce history row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coalesce history: %w", err)
	}

	return entries, nil
}

// Save replaces the whole snapshot.
func (a *HistoryAdapter) Save(ctx context.Context, entries []ingest.HistoryEntry) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryClearHistory); err != nil {
		return fmt.Errorf("failed to clear coalesce history: %w", err)
	}

	for position, entry := range entries {
		if entry.Key == "" || entry.Fingerprint == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, queryInsertHistory, position, entry.Key, entry.Fingerprint); err != nil {
			return fmt.Errorf("failed to insert coalesce history row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit coalesce history: %w", err)
	}

	slog.Debug("[Postgres] Saved coalesce history snapshot", "entries", len(entries))
	return nil
}
