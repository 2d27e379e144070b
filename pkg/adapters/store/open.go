// Package store selects a KeyValueStore adapter from the configured URL.
package store

import (
	"context"
	"strings"

	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/cloudflare"
	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/memory"
	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/postgres"
	redisstore "github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/redis"
	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/sqlite"
	"github.com/wadjakorntonsri/kv-shortener/pkg/config"
	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

// Open picks an adapter by STORE_URL scheme. Anything that is not memory,
// postgres, redis or cloudflare is handed to the sqlite/libsql driver.
func Open(ctx context.Context, cfg *config.Config) (ports.KeyValueStore, error) {
	u := cfg.StoreURL
	switch {
	case strings.HasPrefix(u, "memory:"):
		return memory.New(cfg.StoreBatchSize), nil
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return postgres.New(ctx, u, cfg.StoreBatchSize)
	case strings.HasPrefix(u, "redis://"), strings.HasPrefix(u, "rediss://"):
		return redisstore.Open(ctx, u, cfg.RedisPrefix, cfg.StoreBatchSize)
	case strings.HasPrefix(u, "cloudflare://"):
		return cloudflare.Open(u, cfg.CloudflareAPIURL, cfg.CloudflareAPIToken, cfg.StoreBatchSize)
	default:
		return sqlite.NewSQLiteStore(u, cfg.StoreBatchSize)
	}
}
