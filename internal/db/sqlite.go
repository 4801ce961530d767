package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqlitePool wraps database/sql with the mattn driver. A single writer
// connection is kept open; SQLite serializes writes anyway and a shared
// connection keeps :memory: databases alive across statements.
type sqlitePool struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database at path.
// ":memory:" opens an in-memory database.
func OpenSQLite(ctx context.Context, path string) (Pool, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn = fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn)
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	p := &sqlitePool{db: sqlDB}
	if err := p.configurePragmas(ctx, path); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return p, nil
}

func (p *sqlitePool) configurePragmas(ctx context.Context, path string) error {
	pragmas := []string{"PRAGMA synchronous=NORMAL;"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL;")
	}
	for _, q := range pragmas {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}
	return nil
}

func (p *sqlitePool) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (p *sqlitePool) Exec(ctx context.Context, query string, args ...any) error {
	_, err := p.db.ExecContext(ctx, query, args...)
	return err
}

func (p *sqlitePool) Close() {
	_ = p.db.Close()
}

// sqlRows adapts *sql.Rows to the Rows interface (Close drops the error,
// matching the pgx cursor signature).
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}
