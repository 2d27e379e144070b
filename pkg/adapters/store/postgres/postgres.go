package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

type Store struct {
	pool      *pgxpool.Pool
	batchSize int
}

func New(ctx context.Context, dsn string, batchSize int) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewWithPool(pool, batchSize)
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewWithPool wraps an existing pool. The caller is responsible for the schema.
func NewWithPool(pool *pgxpool.Pool, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Store{pool: pool, batchSize: batchSize}
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO kv (key, value) VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key)
	return err
}

// List uses keyset pagination in byte order so the cursor comparison does
// not depend on the database collation.
func (s *Store) List(ctx context.Context, cursor string) (ports.ListResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM kv WHERE key COLLATE "C" > $1 ORDER BY key COLLATE "C" LIMIT $2`,
		cursor, s.batchSize+1)
	if err != nil {
		return ports.ListResult{}, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return ports.ListResult{}, err
	}

	if len(keys) <= s.batchSize {
		return ports.ListResult{Keys: keys, Complete: true}, nil
	}
	keys = keys[:s.batchSize]
	return ports.ListResult{Keys: keys, Cursor: keys[len(keys)-1]}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ ports.KeyValueStore = (*Store)(nil)
