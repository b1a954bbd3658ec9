package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier abstracts the subset of pgxpool.Pool used by PostgresKV.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresKV stores values in the kv_store table (see migrations/).
type PostgresKV struct {
	q     Querier
	close func()
}

// NewPostgresKV constructs a PostgresKV backed by the given pool.
func NewPostgresKV(pool *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{q: pool, close: pool.Close}
}

// NewPostgresKVWithQuerier constructs a PostgresKV with a custom Querier (for tests).
func NewPostgresKVWithQuerier(q Querier) *PostgresKV {
	return &PostgresKV{q: q}
}

// Get returns ("", false, nil) when the key has no row.
func (p *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT value FROM kv_store WHERE key = $1`

	var value string
	if err := p.q.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("querying kv_store for key %s: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the value for key.
func (p *PostgresKV) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value      = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := p.q.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("upserting kv_store key %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv_store WHERE key = $1`

	if _, err := p.q.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("deleting kv_store key %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Ping(ctx context.Context) error {
	return p.q.Ping(ctx)
}

func (p *PostgresKV) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
