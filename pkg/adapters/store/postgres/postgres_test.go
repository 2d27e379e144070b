package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("shortener"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = tc.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, dsn, 2)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	for _, k := range []string{"b", "a", "stats:a", "C"} {
		require.NoError(t, s.Put(ctx, k, "v-"+k))
	}
	require.NoError(t, s.Put(ctx, "a", "updated"))

	v, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "updated", v)

	var all []string
	cursor := ""
	for {
		res, err := s.List(ctx, cursor)
		require.NoError(t, err)
		all = append(all, res.Keys...)
		if res.Complete {
			break
		}
		cursor = res.Cursor
	}
	assert.Equal(t, []string{"C", "a", "b", "stats:a"}, all)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	_, found, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
}
