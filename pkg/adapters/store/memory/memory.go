// Package memory is an in-process KeyValueStore used by tests and
// single-instance deployments that do not need persistence.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

const defaultBatchSize = 1000

type Store struct {
	mu        sync.RWMutex
	data      map[string]string
	batchSize int
}

// New returns an empty store whose List calls return at most batchSize keys.
func New(batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{
		data:      make(map[string]string),
		batchSize: batchSize,
	}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List walks keys in lexical order. The cursor is the last key of the
// previous batch.
func (s *Store) List(_ context.Context, cursor string) (ports.ListResult, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	start := 0
	if cursor != "" {
		start = sort.Search(len(keys), func(i int) bool { return keys[i] > cursor })
	}
	end := start + s.batchSize
	if end >= len(keys) {
		return ports.ListResult{Keys: keys[start:], Complete: true}, nil
	}
	return ports.ListResult{Keys: keys[start:end], Cursor: keys[end-1]}, nil
}

func (s *Store) Close() error { return nil }

var _ ports.KeyValueStore = (*Store)(nil)
