// Package kv implements the link and stats repositories on top of a flat
// KeyValueStore.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

type LinkRepository struct {
	store  ports.KeyValueStore
	format Format
	log    *zap.Logger
}

func NewLinkRepository(store ports.KeyValueStore, format Format, log *zap.Logger) *LinkRepository {
	if format == "" {
		format = FormatJSON
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkRepository{store: store, format: format, log: log}
}

func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) error {
	if link.Key == "" || domain.IsStatsKey(link.Key) {
		return fmt.Errorf("%w: key %q", domain.ErrInvalidInput, link.Key)
	}
	value, err := EncodeLink(link, r.format)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, link.Key, value); err != nil {
		return fmt.Errorf("put link %s: %w", link.Key, err)
	}
	return nil
}

func (r *LinkRepository) Get(ctx context.Context, key string) (*domain.Link, error) {
	if domain.IsStatsKey(key) {
		return nil, nil
	}
	raw, found, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get link %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	return r.decode(key, raw)
}

func (r *LinkRepository) decode(key, raw string) (*domain.Link, error) {
	link, err := DecodeLink(key, raw)
	if err == nil && HasLegacyOverflow(raw) {
		r.log.Warn("legacy link record has extra commas; kept them in the description", zap.String("key", key))
	}
	return link, err
}

// ListPage reads every link in the store, newest first, and returns the
// requested window. The whole keyspace is scanned on each call so the
// ordering is global.
func (r *LinkRepository) ListPage(ctx context.Context, page, pageSize int) (*domain.LinkPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: page size %d", domain.ErrInvalidInput, pageSize)
	}

	links, err := r.Dump(ctx)
	if err != nil {
		return nil, err
	}

	total := len(links)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	window := make([]domain.Link, end-start)
	copy(window, links[start:end])
	return &domain.LinkPage{
		Links: window,
		Pagination: domain.Pagination{
			CurrentPage: page,
			TotalPages:  (total + pageSize - 1) / pageSize,
			TotalLinks:  total,
		},
	}, nil
}

// Dump returns every decodable link sorted by creation time, newest first.
func (r *LinkRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	links := []domain.Link{}
	err := r.scan(ctx, func(key, raw string) error {
		link, err := r.decode(key, raw)
		if err != nil {
			r.log.Warn("skipping undecodable link record", zap.String("key", key), zap.Error(err))
			return nil
		}
		links = append(links, *link)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CreatedAt > links[j].CreatedAt
	})
	return links, nil
}

// Delete removes the link and its stats. Both deletes are attempted; there
// is no rollback if only one succeeds.
func (r *LinkRepository) Delete(ctx context.Context, key string) error {
	var errs []error
	if err := r.store.Delete(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("delete link %s: %w", key, err))
	}
	if err := r.store.Delete(ctx, domain.StatsKey(key)); err != nil {
		errs = append(errs, fmt.Errorf("delete stats %s: %w", key, err))
	}
	return errors.Join(errs...)
}

// Migrate rewrites every legacy record in the repository's write format and
// returns how many records changed. It is a no-op in legacy mode.
func (r *LinkRepository) Migrate(ctx context.Context) (int, error) {
	if r.format == FormatLegacy {
		return 0, nil
	}
	migrated := 0
	err := r.scan(ctx, func(key, raw string) error {
		if !IsLegacy(raw) {
			return nil
		}
		link, err := r.decode(key, raw)
		if err != nil {
			r.log.Warn("cannot migrate link record", zap.String("key", key), zap.Error(err))
			return nil
		}
		if err := r.Create(ctx, link); err != nil {
			return err
		}
		migrated++
		return nil
	})
	return migrated, err
}

// scan visits each link key once with its raw value. Stats keys are skipped,
// as are keys that disappear between listing and reading.
func (r *LinkRepository) scan(ctx context.Context, fn func(key, raw string) error) error {
	seen := make(map[string]struct{})
	cursor := ""
	for {
		res, err := r.store.List(ctx, cursor)
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		for _, key := range res.Keys {
			if domain.IsStatsKey(key) {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			raw, found, err := r.store.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("get link %s: %w", key, err)
			}
			if !found {
				continue
			}
			if err := fn(key, raw); err != nil {
				return err
			}
		}
		if res.Complete || res.Cursor == "" {
			return nil
		}
		cursor = res.Cursor
	}
}

var _ ports.LinkRepository = (*LinkRepository)(nil)
