package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/baydersh/markscan/internal/domain/entry"
	"github.com/baydersh/markscan/internal/repository"
)

// entriesKey is the single key holding the whole serialized entry log.
const entriesKey = "entries"

// EntryRepository implements entry.Repository on the kv table: the log
// is one JSON array, fully rewritten on every save.
type EntryRepository struct {
	db *DB
}

// NewEntryRepository creates a new EntryRepository
func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Load reads and deserializes the persisted log. A missing key is an
// empty log; a malformed value is an error the service downgrades to an
// empty log at startup.
func (r *EntryRepository) Load(ctx context.Context) ([]entry.Entry, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ?`, entriesKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry log: %w", err)
	}

	var entries []entry.Entry
	if err := json.Unmarshal([]byte(value), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse entry log: %w", err)
	}
	return entries, nil
}

// Save rewrites the whole log under the single key. A rejected write
// (disk full, quota) maps to repository.ErrWriteFailed.
func (r *EntryRepository) Save(ctx context.Context, entries []entry.Entry) error {
	value, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to serialize entry log: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		entriesKey, string(value), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrWriteFailed, err)
	}
	return nil
}
