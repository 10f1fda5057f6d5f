package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vendorr/vendorr-edge/pkg/instance"
	"github.com/vendorr/vendorr-edge/pkg/redis"
)

const defaultLockTTL = 2 * time.Minute

// Lock keeps a job from overlapping with itself.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns the lock guarding the named job.
type LockFactory func(job string) (Lock, error)

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a SETNX lease shared by every edge instance on the same
// Redis. The lease expires after ttl if its holder dies.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

// RedisLocks hands out one lease per job, keyed under the lock namespace.
func RedisLocks(client *redis.Client, ttl time.Duration) LockFactory {
	return func(job string) (Lock, error) {
		if client == nil {
			return nil, errors.New("redis client required for lock")
		}
		return NewRedisLock(client, client.LockKey(job), ttl)
	}
}

// Acquire takes the lease under a fresh token naming this instance.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := fmt.Sprintf("%s/%s", instance.GetID(), uuid.NewString())
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if won {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return won, nil
}

// Release deletes the lease only while it still carries our token, so an
// expired lease re-taken by another instance is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}

	holder, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read lock holder: %w", err)
	case holder != token:
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// LocalLock guards a job within this process when no Redis is configured.
type LocalLock struct {
	held atomic.Bool
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.held.Store(false)
	return nil
}

func LocalLocks() LockFactory {
	return func(string) (Lock, error) {
		return &LocalLock{}, nil
	}
}
