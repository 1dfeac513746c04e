// Package pgstore keeps session entries in PostgreSQL, for kiosks and staff
// terminals that share one session store.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/rally-session/tokenstore"
)

// DefaultTable is the table used when none is configured
const DefaultTable = "rally_session_kv"

var _ tokenstore.Backend = (*Store)(nil)

// Store implements tokenstore.Backend on a pgx connection pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Option configures a Store
type Option func(*Store)

// WithTable overrides the table name. The name is quoted as an identifier.
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, errors.New("[pgstore New] pool is required")
	}
	s := &Store{pool: pool, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if s.table == "" {
		return nil, errors.New("[pgstore New] table name is required")
	}
	return s, nil
}

// Connect opens a pool for databaseURL and wraps it.
func Connect(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[pgstore Connect] failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[pgstore Connect] failed to reach database: %w", err)
	}
	return New(pool, opts...)
}

// Close releases the pool
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// EnsureSchema creates the key/value table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key        text PRIMARY KEY,
	value      text NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`, s.ident()))
	if err != nil {
		return fmt.Errorf("[pgstore EnsureSchema] %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.ident()), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[pgstore Get] %w", err)
	}
	return value, true, nil
}

// Put upserts every entry inside one transaction.
func (s *Store) Put(ctx context.Context, entries map[string]string) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, s.ident())

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for k, v := range entries {
			batch.Queue(query, k, v)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("[pgstore Put] %w", err)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ANY($1)`, s.ident()), keys); err != nil {
		return fmt.Errorf("[pgstore Delete] %w", err)
	}
	return nil
}
