// Package redis stores records as plain string values under a key prefix.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

type Store struct {
	client    *redis.Client
	prefix    string
	batchSize int64
}

// Open connects to a redis:// or rediss:// URL.
func Open(ctx context.Context, url, prefix string, batchSize int) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, prefix, batchSize), nil
}

func New(client *redis.Client, prefix string, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Store{client: client, prefix: prefix, batchSize: int64(batchSize)}
}

// Client exposes the connection so the visit locker can share it.
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// List walks the keyspace with SCAN. The cursor is the decimal SCAN cursor
// and the scan is complete when redis hands back 0. SCAN may return a key
// more than once.
func (s *Store) List(ctx context.Context, cursor string) (ports.ListResult, error) {
	var c uint64
	if cursor != "" {
		var err error
		if c, err = strconv.ParseUint(cursor, 10, 64); err != nil {
			return ports.ListResult{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
	}

	keys, next, err := s.client.Scan(ctx, c, escapePattern(s.prefix)+"*", s.batchSize).Result()
	if err != nil {
		return ports.ListResult{}, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, s.prefix)
	}

	if next == 0 {
		return ports.ListResult{Keys: keys, Complete: true}, nil
	}
	return ports.ListResult{Keys: keys, Cursor: strconv.FormatUint(next, 10)}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func escapePattern(p string) string {
	return strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`).Replace(p)
}

var _ ports.KeyValueStore = (*Store)(nil)
