// Package db provides the shared connection resource the sync engine runs
// against. It hides the concrete driver behind a small Pool interface so the
// engine treats SQLite and Postgres identically: hand in a statement, get
// back a row cursor. Parameter binding and dialect are pass-through.
package db

import (
	"context"
	"fmt"
	"strings"
)

// Rows is the subset of a driver result cursor the engine consumes.
// Both database/sql (wrapped) and pgx cursors satisfy it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Pool executes statements against one backend. Implementations are safe
// for concurrent use; the pool owns its internal connection lifecycle.
type Pool interface {
	// Query runs a statement and returns its row cursor. The caller must
	// exhaust or close the cursor.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Exec runs a statement and discards any returned rows. Used for
	// schema bootstrap and fixtures.
	Exec(ctx context.Context, sql string, args ...any) error

	Close()
}

// Open connects to the backend named by the URL scheme.
//
//	postgres://user@host/db  -> pgx pool
//	sqlite:path/to.db        -> sqlite file
//	:memory:                 -> in-memory sqlite
//
// A bare path with no scheme is treated as a sqlite file.
func Open(ctx context.Context, url string) (Pool, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return OpenPostgres(ctx, url)
	case strings.HasPrefix(url, "sqlite:"):
		return OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite:"))
	case url == ":memory:" || !strings.Contains(url, "://"):
		return OpenSQLite(ctx, url)
	default:
		return nil, fmt.Errorf("unsupported database url %q (supported: postgres://, sqlite:, file path)", url)
	}
}
