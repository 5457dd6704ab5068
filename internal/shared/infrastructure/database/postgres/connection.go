// Package postgres opens the shared attempt-history database.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS reschedule_attempts (
	id                 UUID PRIMARY KEY,
	case_id            TEXT NOT NULL,
	primary_facility   TEXT NOT NULL,
	primary_date       DATE NOT NULL,
	primary_time       TEXT NOT NULL,
	secondary_facility TEXT,
	secondary_date     DATE,
	secondary_time     TEXT,
	success            BOOLEAN NOT NULL,
	failure_reason     TEXT,
	attempted_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reschedule_attempts_case
	ON reschedule_attempts (case_id, attempted_at DESC);
`

// Open connects a pool to url and ensures the schema exists.
func Open(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is required for PostgreSQL")
	}

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return pool, nil
}
