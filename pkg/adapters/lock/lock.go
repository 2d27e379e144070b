// Package lock provides per-key lockers for the visit log's
// read-modify-write cycle.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	redisstore "github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store/redis"
	"github.com/wadjakorntonsri/kv-shortener/pkg/config"
	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

// New builds the locker selected by VISIT_LOCK. It returns nil for "none".
// The redis locker uses LOCK_REDIS_URL, or the store's own connection when
// the store is redis.
func New(ctx context.Context, cfg *config.Config, kv ports.KeyValueStore) (ports.Locker, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.VisitLock {
	case config.LockNone, "":
		return nil, noClose, nil
	case config.LockLocal:
		return NewLocal(), noClose, nil
	case config.LockRedis:
		if cfg.LockRedisURL != "" {
			opts, err := redis.ParseURL(cfg.LockRedisURL)
			if err != nil {
				return nil, nil, fmt.Errorf("parse LOCK_REDIS_URL: %w", err)
			}
			client := redis.NewClient(opts)
			if err := client.Ping(ctx).Err(); err != nil {
				client.Close()
				return nil, nil, fmt.Errorf("ping lock redis: %w", err)
			}
			return NewRedis(client, cfg.LockTTL), client.Close, nil
		}
		if rs, ok := kv.(*redisstore.Store); ok {
			return NewRedis(rs.Client(), cfg.LockTTL), noClose, nil
		}
		return nil, nil, errors.New("VISIT_LOCK=redis needs LOCK_REDIS_URL or a redis store")
	default:
		return nil, nil, fmt.Errorf("unknown visit lock %q", cfg.VisitLock)
	}
}

// Local serializes callers per key within one process.
type Local struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{keys: make(map[string]*keyLock)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	k, ok := l.keys[key]
	if !ok {
		k = &keyLock{sem: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.sem
			l.release(key, k)
		})
	}, nil
}

func (l *Local) release(key string, k *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
}

// Redis is a distributed lock shared by every instance using the same redis.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: redislock.New(rdb), ttl: ttl}
}

// Lock retries until the lock is obtained, ctx is done or the TTL elapses.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	l, err := r.client.Obtain(ctx, "lock:"+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if err != nil {
		return nil, err
	}
	return func() {
		// Release after expiry reports ErrLockNotHeld; nothing left to undo.
		_ = l.Release(context.Background())
	}, nil
}

var (
	_ ports.Locker = (*Local)(nil)
	_ ports.Locker = (*Redis)(nil)
)
