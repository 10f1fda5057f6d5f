package offline

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/vendorr/vendorr-edge/pkg/redis"
)

type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	HSet(ctx context.Context, key, field string, value any) error
	HGet(ctx context.Context, key, field string) (string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...string) error
	CacheKey(generation string) string
	CacheIndexKey() string
	CacheActiveKey() string
}

// RedisStore keeps each generation in a hash and tracks generations in a set.
type RedisStore struct {
	kv redisKV
}

func NewRedisStore(kv redisKV) *RedisStore {
	return &RedisStore{kv: kv}
}

func (s *RedisStore) Put(ctx context.Context, generation, key string, entry Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.kv.SAdd(ctx, s.kv.CacheIndexKey(), generation); err != nil {
		return err
	}
	return s.kv.HSet(ctx, s.kv.CacheKey(generation), key, data)
}

func (s *RedisStore) Match(ctx context.Context, generation, key string) (Entry, error) {
	value, err := s.kv.HGet(ctx, s.kv.CacheKey(generation), key)
	if errors.Is(err, pkgredis.Nil) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry([]byte(value))
}

func (s *RedisStore) Generations(ctx context.Context) ([]string, error) {
	return s.kv.SMembers(ctx, s.kv.CacheIndexKey())
}

func (s *RedisStore) DropGeneration(ctx context.Context, generation string) error {
	if err := s.kv.Del(ctx, s.kv.CacheKey(generation)); err != nil {
		return err
	}
	return s.kv.SRem(ctx, s.kv.CacheIndexKey(), generation)
}

func (s *RedisStore) SetActive(ctx context.Context, generation string) error {
	return s.kv.Set(ctx, s.kv.CacheActiveKey(), generation, 0)
}

func (s *RedisStore) Active(ctx context.Context) (string, error) {
	value, err := s.kv.Get(ctx, s.kv.CacheActiveKey())
	if errors.Is(err, pkgredis.Nil) {
		return "", nil
	}
	return value, err
}
