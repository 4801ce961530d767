package db

import (
	"context"
	"strings"
	"testing"
)

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/db")
	if err == nil {
		t.Fatal("Open accepted an unsupported scheme")
	}
	if !strings.Contains(err.Error(), "unsupported database url") {
		t.Fatalf("error = %v", err)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("OpenSQLite accepted an empty path")
	}
}

func TestOpen_MemorySQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	if err := pool.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pool.Exec(ctx, "INSERT INTO t (id, name) VALUES (?, ?)", 1, "a"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// The in-memory database must survive across statements.
	rows, err := pool.Query(ctx, "SELECT id, name FROM t")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var (
		id   int64
		name string
		n    int
	)
	for rows.Next() {
		if err := rows.Scan(&id, &name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if n != 1 || id != 1 || name != "a" {
		t.Fatalf("got %d rows, last (%d,%q); want 1 row (1,a)", n, id, name)
	}
}

func TestOpen_SQLiteFilePath(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/nested/dir/test.db"

	pool, err := Open(ctx, "sqlite:"+path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	if err := pool.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestOpen_BareFilePathIsSQLite(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, t.TempDir()+"/plain.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pool.Close()
}

func TestSQLite_QueryErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Query(ctx, "SELECT * FROM missing_table"); err == nil {
		t.Fatal("query against missing table succeeded")
	}
}
