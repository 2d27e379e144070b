package kv

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/memory"
	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
)

func TestLinkRepositoryCreateGet(t *testing.T) {
	ctx := context.Background()
	repo := NewLinkRepository(memory.New(0), FormatJSON, nil)

	link := &domain.Link{Key: "abc", TargetURL: "https://example.com", Title: "Example", CreatedAt: 10}
	require.NoError(t, repo.Create(ctx, link))

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, link, got)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLinkRepositoryRejectsStatsKeys(t *testing.T) {
	repo := NewLinkRepository(memory.New(0), FormatJSON, nil)
	err := repo.Create(context.Background(), &domain.Link{Key: "stats:abc", TargetURL: "https://example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLinkRepositoryListPage(t *testing.T) {
	ctx := context.Background()
	kv := memory.New(4) // several List calls per scan
	repo := NewLinkRepository(kv, FormatJSON, nil)

	const n = 23
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(ctx, &domain.Link{
			Key:       fmt.Sprintf("link%02d", i),
			TargetURL: "https://example.com",
			CreatedAt: int64(1000 + i),
		}))
		require.NoError(t, kv.Put(ctx, domain.StatsKey(fmt.Sprintf("link%02d", i)), `{"visits":[]}`))
	}
	require.NoError(t, kv.Put(ctx, "broken", `{"targetUrl":`))

	const size = 10
	var all []domain.Link
	for page := 1; page <= 3; page++ {
		p, err := repo.ListPage(ctx, page, size)
		require.NoError(t, err)
		assert.Equal(t, page, p.Pagination.CurrentPage)
		assert.Equal(t, 3, p.Pagination.TotalPages)
		assert.Equal(t, n, p.Pagination.TotalLinks)
		all = append(all, p.Links...)
	}

	require.Len(t, all, n)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].CreatedAt, all[i].CreatedAt)
	}
	assert.Equal(t, "link22", all[0].Key)

	beyond, err := repo.ListPage(ctx, 9, size)
	require.NoError(t, err)
	assert.NotNil(t, beyond.Links)
	assert.Empty(t, beyond.Links)
}

func TestLinkRepositoryListPageEmpty(t *testing.T) {
	p, err := NewLinkRepository(memory.New(0), FormatJSON, nil).ListPage(context.Background(), 1, 30)
	require.NoError(t, err)
	assert.Empty(t, p.Links)
	assert.Equal(t, domain.Pagination{CurrentPage: 1}, p.Pagination)
}

func TestLinkRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	kv := memory.New(0)
	links := NewLinkRepository(kv, FormatJSON, nil)
	stats := NewStatsRepository(kv, nil, nil)

	require.NoError(t, links.Create(ctx, &domain.Link{Key: "abc", TargetURL: "https://example.com"}))
	require.NoError(t, stats.RecordVisit(ctx, "abc", domain.Visit{IP: "1.2.3.4"}))

	require.NoError(t, links.Delete(ctx, "abc"))

	_, found, _ := kv.Get(ctx, "abc")
	assert.False(t, found)
	_, found, _ = kv.Get(ctx, "stats:abc")
	assert.False(t, found)

	assert.NoError(t, links.Delete(ctx, "abc"), "deleting an absent key succeeds")
}

type failingDeleteStore struct {
	*memory.Store
	failKey string
}

func (s failingDeleteStore) Delete(ctx context.Context, key string) error {
	if key == s.failKey {
		return errors.New("store unavailable")
	}
	return s.Store.Delete(ctx, key)
}

func TestLinkRepositoryDeleteAttemptsBoth(t *testing.T) {
	ctx := context.Background()
	kv := failingDeleteStore{Store: memory.New(0), failKey: "abc"}
	require.NoError(t, kv.Put(ctx, "abc", `{"targetUrl":"https://example.com"}`))
	require.NoError(t, kv.Put(ctx, "stats:abc", `{"visits":[]}`))

	err := NewLinkRepository(kv, FormatJSON, nil).Delete(ctx, "abc")
	require.Error(t, err)

	_, found, _ := kv.Get(ctx, "stats:abc")
	assert.False(t, found, "stats are removed even when the link delete fails")
}

func TestLinkRepositoryMigrate(t *testing.T) {
	ctx := context.Background()
	kv := memory.New(2)
	require.NoError(t, kv.Put(ctx, "old", "https://example.com,,Old title,Old description"))
	require.NoError(t, kv.Put(ctx, "new", `{"targetUrl":"https://example.org","createdAt":5}`))
	require.NoError(t, kv.Put(ctx, "stats:old", `{"visits":[]}`))

	repo := NewLinkRepository(kv, FormatJSON, nil)
	n, err := repo.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	raw, _, _ := kv.Get(ctx, "old")
	assert.False(t, IsLegacy(raw))

	got, err := repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "Old title", got.Title)
	assert.Equal(t, "Old description", got.Description)

	stats, _, _ := kv.Get(ctx, "stats:old")
	assert.Equal(t, `{"visits":[]}`, stats)
}

func TestLinkRepositoryLegacyCommaDescription(t *testing.T) {
	ctx := context.Background()
	kv := memory.New(2)
	require.NoError(t, kv.Put(ctx, "old", "https://example.com,https://img.example/a.png,Title,Hello, world"))

	core, logs := observer.New(zap.WarnLevel)
	repo := NewLinkRepository(kv, FormatJSON, zap.New(core))

	got, err := repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.TargetURL)
	assert.Equal(t, "Hello, world", got.Description)
	assert.Equal(t, 1, logs.FilterMessageSnippet("extra commas").Len())

	page, err := repo.ListPage(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Links, 1)
	assert.Equal(t, "old", page.Links[0].Key)

	n, err := repo.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	raw, _, _ := kv.Get(ctx, "old")
	assert.False(t, IsLegacy(raw))
	got, err = repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", got.Description)
}
