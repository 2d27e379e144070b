package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/cloudflare"
	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/memory"
	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/sqlite"
	"github.com/wadjakorntonsri/kv-shortener/pkg/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		url   string
		check func(t *testing.T, v any)
	}{
		{
			name: "memory",
			url:  "memory://",
			check: func(t *testing.T, v any) {
				assert.IsType(t, &memory.Store{}, v)
			},
		},
		{
			name: "sqlite",
			url:  "file:open_test?mode=memory&cache=shared",
			check: func(t *testing.T, v any) {
				assert.IsType(t, &sqlite.SQLiteStore{}, v)
			},
		},
		{
			name: "cloudflare",
			url:  "cloudflare://account/namespace",
			check: func(t *testing.T, v any) {
				assert.IsType(t, &cloudflare.Store{}, v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.StoreURL = tt.url
			cfg.CloudflareAPIToken = "token"

			kv, err := Open(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(func() { kv.Close() })
			tt.check(t, kv)
		})
	}
}

func TestOpenRedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.StoreURL = "redis://127.0.0.1:1/0"

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
