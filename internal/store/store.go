// Package store provides the relational persistence layer for the
// classtrack pipeline: row types, schema bootstrap, and an idempotent
// writer that classifies uniqueness violations as benign outcomes.
//
// The package speaks database/sql and supports two backends: PostgreSQL
// (production, via the pgx stdlib driver) and SQLite (tests and local
// runs). All queries use $N placeholders, which both drivers accept.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DateLayout is the canonical rendering of calendar dates in stat rows.
const DateLayout = "2006-01-02"

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Writers operate on it so a caller chooses the transaction scope.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens a database handle for the given driver ("pgx" or "sqlite3").
func Open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	switch driver {
	case "sqlite3":
		// Single writer; SQLite serializes writes anyway.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return db, nil
}

// PostgresDSN assembles a connection string from the discrete settings the
// processors receive through the environment.
func PostgresDSN(server, database, user, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s", user, password, server, database)
}
