package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := New(0)

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "a", "1"))
	v, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", v)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"), "deleting an absent key succeeds")
	_, found, _ = s.Get(ctx, "a")
	assert.False(t, found)
}

func TestStoreListBatches(t *testing.T) {
	ctx := context.Background()
	s := New(3)
	for i := 0; i < 8; i++ {
		require.NoError(t, s.Put(ctx, fmt.Sprintf("k%02d", i), "v"))
	}

	var all []string
	cursor := ""
	calls := 0
	for {
		res, err := s.List(ctx, cursor)
		require.NoError(t, err)
		calls++
		all = append(all, res.Keys...)
		if res.Complete {
			break
		}
		cursor = res.Cursor
	}

	assert.Equal(t, 3, calls)
	assert.Len(t, all, 8)
	assert.Equal(t, "k00", all[0])
	assert.Equal(t, "k07", all[7])
}

func TestStoreListEmpty(t *testing.T) {
	res, err := New(3).List(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Empty(t, res.Keys)
}
