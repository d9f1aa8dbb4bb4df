package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/db"
)

// SQLStore is a Store over the local users table, used when no hosted
// identity provider is configured.
type SQLStore struct {
	db *db.DB
}

// NewSQLStore creates a local identity store.
func NewSQLStore(d *db.DB) *SQLStore {
	return &SQLStore{db: d}
}

// Create adds a user with empty metadata.
func (s *SQLStore) Create(ctx context.Context, id, username string) (*User, error) {
	id = strings.TrimSpace(id)
	username = strings.TrimSpace(username)
	if id == "" || username == "" {
		return nil, apperr.Validation("missing_fields", "user id and username are required")
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, metadata) VALUES (?, ?, ?)",
		id, username, "{}",
	); err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return &User{ID: id, Username: username, Metadata: map[string]any{}}, nil
}

// GetUser returns a user by id.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, username, metadata FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user_not_found", fmt.Sprintf("user %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %s: %w", id, err)
	}
	return u, nil
}

// FindByUsername returns a user by username.
func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, username, metadata FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user_not_found", fmt.Sprintf("user %q not found", username))
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %q: %w", username, err)
	}
	return u, nil
}

// UpdateMetadata replaces a user's metadata.
func (s *SQLStore) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	result, err := s.db.ExecContext(ctx, "UPDATE users SET metadata = ? WHERE id = ?", string(data), id)
	if err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("user_not_found", fmt.Sprintf("user %s not found", id))
	}
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var raw string
	if err := row.Scan(&u.ID, &u.Username, &raw); err != nil {
		return nil, err
	}
	u.Metadata = map[string]any{}
	if raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&u.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", u.ID, err)
		}
	}
	return &u, nil
}
