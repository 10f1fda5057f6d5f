package cart

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/vendorr/vendorr-edge/pkg/redis"
	"github.com/vendorr/vendorr-edge/pkg/storage/bolt"
)

type boltKV interface {
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, value []byte) error
}

// BoltStore keeps carts in the embedded database, one bucket per storage key.
type BoltStore struct {
	kv     boltKV
	bucket string
}

// NewBoltStore persists carts under bucket storageKey.
func NewBoltStore(kv boltKV, storageKey string) *BoltStore {
	return &BoltStore{kv: kv, bucket: storageKey}
}

func (s *BoltStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	data, err := s.kv.Get(s.bucket, sessionID)
	if errors.Is(err, bolt.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *BoltStore) Save(_ context.Context, sessionID string, data []byte) error {
	return s.kv.Put(s.bucket, sessionID, data)
}

type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CartKey(storageKey, sessionID string) string
}

// RedisStore keeps carts in Redis so several edge replicas share them.
type RedisStore struct {
	kv         redisKV
	storageKey string
}

// NewRedisStore persists carts under keys derived from storageKey.
func NewRedisStore(kv redisKV, storageKey string) *RedisStore {
	return &RedisStore{kv: kv, storageKey: storageKey}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	value, err := s.kv.Get(ctx, s.kv.CartKey(s.storageKey, sessionID))
	if errors.Is(err, pkgredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, data []byte) error {
	return s.kv.Set(ctx, s.kv.CartKey(s.storageKey, sessionID), data, 0)
}
