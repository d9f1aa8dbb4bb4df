package db

import (
	"fmt"
)

// sqliteMigrations is the ordered schema for the local SQLite store.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS properties (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		title        TEXT    NOT NULL DEFAULT '',
		address      TEXT    NOT NULL,
		broker       TEXT    NOT NULL DEFAULT '',
		price        TEXT    NOT NULL DEFAULT '',
		beds         TEXT    NOT NULL DEFAULT '',
		baths        TEXT    NOT NULL DEFAULT '',
		sqft         TEXT    NOT NULL DEFAULT '',
		url          TEXT    NOT NULL DEFAULT '',
		available    BOOLEAN NOT NULL DEFAULT 1,
		owner_wallet TEXT    NOT NULL DEFAULT '',
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		property_id INTEGER NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		author      TEXT    NOT NULL DEFAULT '',
		rating      INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
		comment     TEXT    NOT NULL DEFAULT '',
		date        DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS property_images (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		property_id INTEGER NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		image_url   TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS bid_history (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		property_id    INTEGER NOT NULL,
		user_id        TEXT    NOT NULL DEFAULT '',
		wallet_address TEXT    NOT NULL DEFAULT '',
		amount         TEXT    NOT NULL DEFAULT '0',
		tx_hash        TEXT    NOT NULL,
		status         TEXT    NOT NULL CHECK (status IN ('placed', 'cancelled', 'finalized')),
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (tx_hash, status)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bid_history_property ON bid_history (property_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS users (
		id       TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		metadata TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS sync_cursors (
		name  TEXT    PRIMARY KEY,
		block INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		wallet          TEXT NOT NULL DEFAULT '',
		name            TEXT NOT NULL DEFAULT '',
		credential_json TEXT NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_passkey_credentials_user ON passkey_credentials (user_id)`,
}

// postgresMigrations mirrors sqliteMigrations in the Postgres dialect.
var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS properties (
		id           BIGSERIAL PRIMARY KEY,
		title        TEXT    NOT NULL DEFAULT '',
		address      TEXT    NOT NULL,
		broker       TEXT    NOT NULL DEFAULT '',
		price        TEXT    NOT NULL DEFAULT '',
		beds         TEXT    NOT NULL DEFAULT '',
		baths        TEXT    NOT NULL DEFAULT '',
		sqft         TEXT    NOT NULL DEFAULT '',
		url          TEXT    NOT NULL DEFAULT '',
		available    BOOLEAN NOT NULL DEFAULT TRUE,
		owner_wallet TEXT    NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id          BIGSERIAL PRIMARY KEY,
		property_id BIGINT  NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		author      TEXT    NOT NULL DEFAULT '',
		rating      INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
		comment     TEXT    NOT NULL DEFAULT '',
		date        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS property_images (
		id          BIGSERIAL PRIMARY KEY,
		property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		image_url   TEXT   NOT NULL,
		description TEXT   NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bid_history (
		id             BIGSERIAL PRIMARY KEY,
		property_id    BIGINT NOT NULL,
		user_id        TEXT   NOT NULL DEFAULT '',
		wallet_address TEXT   NOT NULL DEFAULT '',
		amount         TEXT   NOT NULL DEFAULT '0',
		tx_hash        TEXT   NOT NULL,
		status         TEXT   NOT NULL CHECK (status IN ('placed', 'cancelled', 'finalized')),
		created_at     TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE (tx_hash, status)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bid_history_property ON bid_history (property_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS users (
		id       TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		metadata TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS sync_cursors (
		name  TEXT   PRIMARY KEY,
		block BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		wallet          TEXT NOT NULL DEFAULT '',
		name            TEXT NOT NULL DEFAULT '',
		credential_json TEXT NOT NULL,
		created_at      TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_passkey_credentials_user ON passkey_credentials (user_id)`,
}

// migrate runs the driver's migrations in order. Every statement is idempotent.
func migrate(d *DB) error {
	migrations := sqliteMigrations
	if d.Driver == DriverPostgres {
		migrations = postgresMigrations
	}

	for i, m := range migrations {
		if _, err := d.DB.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return nil
}
