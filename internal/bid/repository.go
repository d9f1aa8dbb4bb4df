package bid

import (
	"context"
	"fmt"
	"time"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/db"
)

// Repository provides access to bid_history.
type Repository struct {
	db *db.DB
}

// NewRepository creates a bid history repository.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d}
}

// Append inserts e unless a row with the same tx hash and status exists.
// It reports whether a row was written.
func (r *Repository) Append(ctx context.Context, e *Entry) (bool, error) {
	if !e.Status.Valid() {
		return false, apperr.Validation("invalid_status", fmt.Sprintf("unknown bid status %q", e.Status))
	}
	if e.TxHash == "" {
		return false, apperr.Validation("missing_fields", "tx hash is required")
	}

	amount := e.Amount
	if amount == "" {
		amount = "0"
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO bid_history (property_id, user_id, wallet_address, amount, tx_hash, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tx_hash, status) DO NOTHING`,
		e.PropertyID, e.UserID, e.WalletAddress, amount, e.TxHash, string(e.Status), createdAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting bid history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// ListByPropertyID returns a property's bid history, newest first.
func (r *Repository) ListByPropertyID(ctx context.Context, propertyID int64) (entries []*Entry, err error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, property_id, user_id, wallet_address, amount, tx_hash, status, created_at
		FROM bid_history WHERE property_id = ? ORDER BY created_at DESC, id DESC`,
		propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing bid history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.PropertyID, &e.UserID, &e.WalletAddress, &e.Amount, &e.TxHash, &status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning bid history: %w", err)
		}
		e.Status = Status(status)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bid history: %w", err)
	}

	return entries, nil
}
