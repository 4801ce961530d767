package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgPool wraps a pgx connection pool. pgx row cursors already satisfy the
// Rows interface, so Query is a direct pass-through.
type pgPool struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pgx pool to the given postgres:// URL and
// verifies the connection with a ping.
func OpenPostgres(ctx context.Context, url string) (Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &pgPool{pool: pool}, nil
}

func (p *pgPool) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *pgPool) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *pgPool) Close() {
	p.pool.Close()
}
