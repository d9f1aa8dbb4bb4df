package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/db"
)

// Repository provides data access for properties.
type Repository struct {
	db *db.DB
}

// NewRepository creates a property repository.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d}
}

const selectColumns = `id, title, address, broker, price, beds, baths, sqft, url, available, owner_wallet, created_at`

// Insert adds a property and returns the stored row.
// A non-zero ID is kept, matching listings whose ids are assigned externally.
func (r *Repository) Insert(ctx context.Context, p *Property) (*Property, error) {
	if strings.TrimSpace(p.Address) == "" {
		return nil, apperr.Validation("missing_fields", "address is required")
	}

	cols := "title, address, broker, price, beds, baths, sqft, url, available, owner_wallet"
	vals := "?, ?, ?, ?, ?, ?, ?, ?, ?, ?"
	args := []any{
		p.Title, p.Address, p.Broker, FormatPrice(p.Price),
		p.Beds, p.Baths, p.Sqft, p.URL, p.Available, p.OwnerWallet,
	}
	if p.ID != 0 {
		cols = "id, " + cols
		vals = "?, " + vals
		args = append([]any{p.ID}, args...)
	}

	query := fmt.Sprintf("INSERT INTO properties (%s) VALUES (%s) RETURNING id", cols, vals)

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("inserting property: %w", err)
	}

	// Explicit ids do not advance a Postgres serial
	if p.ID != 0 && r.db.Driver == db.DriverPostgres {
		_, err := r.db.ExecContext(ctx,
			`SELECT setval(pg_get_serial_sequence('properties', 'id'), (SELECT MAX(id) FROM properties))`)
		if err != nil {
			return nil, fmt.Errorf("advancing property id sequence: %w", err)
		}
	}

	return r.GetByID(ctx, id)
}

// GetByID returns a property by its ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Property, error) {
	query := fmt.Sprintf("SELECT %s FROM properties WHERE id = ?", selectColumns)
	row := r.db.QueryRowContext(ctx, query, id)

	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("property_not_found", fmt.Sprintf("property %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying property %d: %w", id, err)
	}

	return p, nil
}

// likeEscaper makes search text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListOptions controls filtering for List.
type ListOptions struct {
	Search        string // case-insensitive match on address or broker
	AvailableOnly bool
}

// List returns properties ordered by id, optionally filtered.
func (r *Repository) List(ctx context.Context, opts ListOptions) (properties []*Property, err error) {
	query := fmt.Sprintf("SELECT %s FROM properties", selectColumns)
	var args []any
	var conditions []string

	if s := strings.TrimSpace(opts.Search); s != "" {
		conditions = append(conditions, `(LOWER(address) LIKE ? ESCAPE '\' OR LOWER(broker) LIKE ? ESCAPE '\')`)
		like := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		args = append(args, like, like)
	}

	if opts.AvailableOnly {
		conditions = append(conditions, "available = ?")
		args = append(args, true)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		properties = append(properties, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating properties: %w", err)
	}

	return properties, nil
}

// SetAvailable updates the availability flag for a property.
func (r *Repository) SetAvailable(ctx context.Context, id int64, available bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE properties SET available = ? WHERE id = ?",
		available, id,
	)
	if err != nil {
		return fmt.Errorf("updating availability: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("property_not_found", fmt.Sprintf("property %d not found", id))
	}

	return nil
}

// MarkUnavailable records a finalized sale.
func (r *Repository) MarkUnavailable(ctx context.Context, id int64) error {
	return r.SetAvailable(ctx, id, false)
}

// SetOwner assigns the owner wallet for a property.
func (r *Repository) SetOwner(ctx context.Context, id int64, wallet string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE properties SET owner_wallet = ? WHERE id = ?",
		strings.TrimSpace(wallet), id,
	)
	if err != nil {
		return fmt.Errorf("updating owner: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("property_not_found", fmt.Sprintf("property %d not found", id))
	}

	return nil
}
