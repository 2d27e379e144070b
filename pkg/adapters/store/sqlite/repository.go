package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

type SQLiteStore struct {
	db        *sql.DB
	batchSize int
}

func NewSQLiteStore(dbURL string, batchSize int) (*SQLiteStore, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 1000
	}
	return &SQLiteStore{db: db, batchSize: batchSize}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	_, err := db.Exec(query)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// List uses keyset pagination; the cursor is the last key of the previous batch.
func (s *SQLiteStore) List(ctx context.Context, cursor string) (ports.ListResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE key > ? ORDER BY key LIMIT ?`, cursor, s.batchSize+1)
	if err != nil {
		return ports.ListResult{}, err
	}
	defer rows.Close()

	keys := make([]string, 0, s.batchSize)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return ports.ListResult{}, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return ports.ListResult{}, err
	}

	if len(keys) <= s.batchSize {
		return ports.ListResult{Keys: keys, Complete: true}, nil
	}
	keys = keys[:s.batchSize]
	return ports.ListResult{Keys: keys, Cursor: keys[len(keys)-1]}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ ports.KeyValueStore = (*SQLiteStore)(nil)
