// Package db opens the relational store and runs schema migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DB is a *sqlx.DB that knows which SQL dialect it speaks.
type DB struct {
	*sqlx.DB
	Driver string
}

// DefaultPath returns the default SQLite path: ~/.propchain/propchain.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".propchain", "propchain.db"), nil
}

// Open connects to the store and runs migrations.
// For sqlite3 dsn is a file path (directories are created, WAL and foreign
// keys enabled). For pgx dsn is a Postgres connection URL.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres:
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// OpenSQLite is shorthand for Open(DriverSQLite, path).
func OpenSQLite(path string) (*DB, error) {
	return Open(DriverSQLite, path)
}

func openSQLite(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	sqlDB, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	d := &DB{DB: sqlDB, Driver: DriverSQLite}

	if err := configure(d); err != nil {
		return nil, closeOnErr(d, err)
	}
	if err := migrate(d); err != nil {
		return nil, closeOnErr(d, fmt.Errorf("running migrations: %w", err))
	}
	return d, nil
}

func openPostgres(dsn string) (*DB, error) {
	sqlDB, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	d := &DB{DB: sqlDB, Driver: DriverPostgres}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		return nil, closeOnErr(d, fmt.Errorf("connecting to postgres: %w", err))
	}
	if err := migrate(d); err != nil {
		return nil, closeOnErr(d, fmt.Errorf("running migrations: %w", err))
	}
	return d, nil
}

func closeOnErr(d *DB, err error) error {
	if closeErr := d.Close(); closeErr != nil {
		return fmt.Errorf("%w (also failed to close: %v)", err, closeErr)
	}
	return err
}

// configure sets SQLite pragmas for WAL mode and foreign keys.
func configure(d *DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, p := range pragmas {
		if _, err := d.Exec(p); err != nil {
			return fmt.Errorf("executing %s: %w", p, err)
		}
	}

	return nil
}

// Rebind rewrites ? placeholders into the driver's bind syntax. Every ? is
// a placeholder; literal question marks must be passed as arguments.
func (d *DB) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(d.Driver), query)
}

// ExecContext runs a rebound statement.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

// QueryContext runs a rebound query.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

// QueryRowContext runs a rebound single-row query.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}
