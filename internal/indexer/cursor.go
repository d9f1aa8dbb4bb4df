package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evcraddock/propchain/internal/db"
)

// CursorStore persists the last processed block per indexer.
type CursorStore struct {
	db *db.DB
}

// NewCursorStore creates a cursor store.
func NewCursorStore(d *db.DB) *CursorStore {
	return &CursorStore{db: d}
}

// Get returns the stored block for name. ok is false if none is stored.
func (c *CursorStore) Get(ctx context.Context, name string) (block uint64, ok bool, err error) {
	var n int64
	err = c.db.QueryRowContext(ctx, "SELECT block FROM sync_cursors WHERE name = ?", name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading cursor %s: %w", name, err)
	}
	return uint64(n), true, nil
}

// Set stores the block for name.
func (c *CursorStore) Set(ctx context.Context, name string, block uint64) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO sync_cursors (name, block) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET block = excluded.block`,
		name, int64(block),
	)
	if err != nil {
		return fmt.Errorf("writing cursor %s: %w", name, err)
	}
	return nil
}
