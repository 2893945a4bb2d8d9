package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPostgresTable is the table used when none is configured.
const DefaultPostgresTable = "synced_objects"

// PostgresStore is a Store backed by a single Postgres table of
// (key, value) rows, for deployments that share state across processes.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTable overrides the backing table name. The name is interpolated
// into DDL/DML, so it must come from trusted configuration.
func WithTable(table string) PostgresOption {
	return func(s *PostgresStore) {
		if table != "" {
			s.table = table
		}
	}
}

// NewPostgresStore creates a store over an existing connection pool and
// ensures the backing table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, table: DefaultPostgresTable}
	for _, opt := range opts {
		opt(s)
	}

	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value TEXT NOT NULL)`, s.table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to ensure table %q: %w", s.table, err)
	}
	return s, nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table)
	var value string
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read value for key %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements Store.Set with an upsert.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, s.table)
	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write value for key %q: %w", key, err)
	}
	return nil
}

// Remove implements Store.Remove.
func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to remove value for key %q: %w", key, err)
	}
	return nil
}

// ListKeys implements Store.ListKeys.
func (s *PostgresStore) ListKeys(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT key FROM %s`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", err)
	}
	return keys, nil
}
