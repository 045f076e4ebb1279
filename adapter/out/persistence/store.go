// Package persistence implements out.Store over PostgreSQL. Grounded on the
// teacher's adapter/out/persistence package: one small adapter struct per
// aggregate, sqlx struct-tagged row types, explicit column lists (never
// SELECT *). The pool itself is jackc/pgx/v5's pgxpool.Pool; sqlx scans rows
// through the pgx stdlib database/sql shim opened from that same pool, so
// connection pooling and struct-tagged scanning share one pool instance.
package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Store implements out.Store. Every aggregate's methods live in their own
// file; this one only owns connection setup.
type Store struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
}

// Open builds a Store from a Postgres DSN: a pgxpool.Pool for the
// connection pool itself, wrapped by sqlx for struct-tagged scanning.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: ping failed: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db := sqlx.NewDb(sqlDB, "pgx")

	return &Store{pool: pool, db: db}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
