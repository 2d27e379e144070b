package kv

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

type StatsRepository struct {
	store  ports.KeyValueStore
	locker ports.Locker
	log    *zap.Logger
}

// NewStatsRepository stores visit logs under stats:<key>. A nil locker
// leaves concurrent appends to the same key unserialized, so one of two
// racing visits can be lost.
func NewStatsRepository(store ports.KeyValueStore, locker ports.Locker, log *zap.Logger) *StatsRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsRepository{store: store, locker: locker, log: log}
}

func (r *StatsRepository) RecordVisit(ctx context.Context, key string, visit domain.Visit) error {
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, domain.StatsKey(key))
		if err != nil {
			return fmt.Errorf("lock stats %s: %w", key, err)
		}
		defer unlock()
	}

	stats, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	stats.Visits = append(stats.Visits, visit)
	return r.put(ctx, key, stats)
}

// Get never reports a missing record; it returns an empty visit list instead.
func (r *StatsRepository) Get(ctx context.Context, key string) (*domain.Stats, error) {
	raw, found, err := r.store.Get(ctx, domain.StatsKey(key))
	if err != nil {
		return nil, fmt.Errorf("get stats %s: %w", key, err)
	}
	stats := &domain.Stats{}
	if found {
		if err := json.UnmarshalFromString(raw, stats); err != nil {
			return nil, fmt.Errorf("%w: stats %s: %v", domain.ErrMalformedRecord, key, err)
		}
	}
	if stats.Visits == nil {
		stats.Visits = []domain.Visit{}
	}
	return stats, nil
}

// Replace overwrites the visit list. An empty list removes the record.
func (r *StatsRepository) Replace(ctx context.Context, key string, visits []domain.Visit) error {
	if len(visits) == 0 {
		return r.Delete(ctx, key)
	}
	return r.put(ctx, key, &domain.Stats{Visits: visits})
}

func (r *StatsRepository) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, domain.StatsKey(key)); err != nil {
		return fmt.Errorf("delete stats %s: %w", key, err)
	}
	return nil
}

func (r *StatsRepository) put(ctx context.Context, key string, stats *domain.Stats) error {
	raw, err := json.MarshalToString(stats)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, domain.StatsKey(key), raw); err != nil {
		return fmt.Errorf("put stats %s: %w", key, err)
	}
	r.log.Debug("stats written", zap.String("key", key), zap.Int("visits", len(stats.Visits)))
	return nil
}

var _ ports.StatsRepository = (*StatsRepository)(nil)
