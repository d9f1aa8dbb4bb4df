package passkey

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/db"
)

// Credential is a registered passkey with its metadata.
type Credential struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	Wallet     string              `json:"wallet,omitempty"`
	Name       string              `json:"name"`
	CreatedAt  time.Time           `json:"created_at"`
	Credential webauthn.Credential `json:"-"`
}

// Store persists passkey credentials.
type Store struct {
	db *db.DB
}

// NewStore creates a passkey store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Save stores a new credential for userID. wallet is the address the caller
// presented at registration and is carried into tokens issued on login.
func (s *Store) Save(ctx context.Context, userID, wallet, name string, cred *webauthn.Credential) (*Credential, error) {
	data, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("marshaling credential: %w", err)
	}

	c := &Credential{
		ID:         hex.EncodeToString(cred.ID),
		UserID:     userID,
		Wallet:     wallet,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		Credential: *cred,
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO passkey_credentials (id, user_id, wallet, name, credential_json, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.UserID, c.Wallet, c.Name, string(data), c.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}

	return c, nil
}

// List returns the credentials registered for userID, oldest first.
func (s *Store) List(ctx context.Context, userID string) (creds []*Credential, err error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, wallet, name, credential_json, created_at FROM passkey_credentials WHERE user_id = ? ORDER BY created_at, id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "error", cerr)
		}
	}()

	for rows.Next() {
		var c Credential
		var data string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Wallet, &c.Name, &data, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &c.Credential); err != nil {
			return nil, fmt.Errorf("unmarshaling credential %s: %w", c.ID, err)
		}
		creds = append(creds, &c)
	}

	return creds, rows.Err()
}

// UpdateCredential rewrites the stored authenticator state, such as the sign
// count, after a successful login.
func (s *Store) UpdateCredential(ctx context.Context, userID string, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE passkey_credentials SET credential_json = ? WHERE id = ? AND user_id = ?",
		string(data), hex.EncodeToString(cred.ID), userID,
	)
	if err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}
	return expectOne(res)
}

// Delete removes one of userID's credentials.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM passkey_credentials WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("passkey_not_found", "passkey not found")
	}
	return nil
}

// webauthnCredentials returns the raw credentials and the most recent wallet.
func webauthnCredentials(stored []*Credential) ([]webauthn.Credential, string) {
	creds := make([]webauthn.Credential, len(stored))
	wallet := ""
	for i, sc := range stored {
		creds[i] = sc.Credential
		if sc.Wallet != "" {
			wallet = sc.Wallet
		}
	}
	return creds, wallet
}
