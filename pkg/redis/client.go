// Package redis is the shared Redis backend for cart snapshots, cache
// generations, push idempotency markers and scheduler locks.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendorr/vendorr-edge/pkg/config"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// Nil is returned by Get/HGet when the key or field does not exist.
const Nil = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// Key layout: vendorr:<area>:<parts...>
const (
	keyNamespace      = "vendorr"
	idempotencyPrefix = "idempotency"
	cartPrefix        = "cart"
	cachePrefix       = "cache"
	lockPrefix        = "lock"
)

// commands is the slice of go-redis the edge needs.
type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	HSet(context.Context, string, ...any) *redis.IntCmd
	HGet(context.Context, string, string) *redis.StringCmd
	SAdd(context.Context, string, ...any) *redis.IntCmd
	SMembers(context.Context, string) *redis.StringSliceCmd
	SRem(context.Context, string, ...any) *redis.IntCmd
}

type Client struct {
	store commands
	raw   *redis.Client
}

// IdempotencyStore is what push de-duplication needs from Redis.
type IdempotencyStore interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New connects and pings before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_db", opts.DB), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers a URL; pool and timeout settings from config
// only fill what the URL left unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}
	fill(&opts.DB, cfg.DB)
	fill(&opts.PoolSize, cfg.PoolSize)
	fill(&opts.MinIdleConns, cfg.MinIdleConns)
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fill[T comparable](dst *T, value T) {
	var zero T
	if *dst == zero {
		*dst = value
	}
}

func (c *Client) ready() error {
	if c == nil || c.store == nil {
		return errNotInitialized
	}
	return nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns Nil for a missing key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX reports whether this call created the key.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Del(ctx, keys...).Err()
}

func (c *Client) HSet(ctx context.Context, key, field string, value any) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.HSet(ctx, key, field, value).Err()
}

// HGet returns Nil for a missing field.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.store.HGet(ctx, key, field).Result()
}

func (c *Client) SAdd(ctx context.Context, key string, members ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.SAdd(ctx, key, anySlice(members)...).Err()
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.store.SMembers(ctx, key).Result()
}

func (c *Client) SRem(ctx context.Context, key string, members ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.SRem(ctx, key, anySlice(members)...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return key(idempotencyPrefix, scope, id)
}

// CartKey holds the persisted cart of one session.
func (c *Client) CartKey(storageKey, sessionID string) string {
	return key(cartPrefix, storageKey, sessionID)
}

// CacheKey is the hash holding one cache generation's entries.
func (c *Client) CacheKey(generation string) string {
	return key(cachePrefix, "gen", generation)
}

// CacheIndexKey is the set of known cache generations.
func (c *Client) CacheIndexKey() string {
	return key(cachePrefix, "generations")
}

func (c *Client) CacheActiveKey() string {
	return key(cachePrefix, "active")
}

func (c *Client) LockKey(name string) string {
	return key(lockPrefix, name)
}

// key joins parts under the namespace, skipping blanks.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
