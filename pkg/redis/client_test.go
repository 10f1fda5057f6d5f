package redis

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendorr/vendorr-edge/pkg/config"
)

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, "k", "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first setnx to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "2", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected second setnx to lose")
	}
	if got, _ := client.Get(ctx, "k"); got != "1" {
		t.Fatalf("value should be untouched, got %q", got)
	}
}

func TestHashLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.CacheKey("vendorr-v1")

	if err := client.HSet(ctx, key, "GET /", []byte("body")); err != nil {
		t.Fatalf("hset failed: %v", err)
	}
	got, err := client.HGet(ctx, key, "GET /")
	if err != nil {
		t.Fatalf("hget failed: %v", err)
	}
	if got != "body" {
		t.Fatalf("unexpected hash value %q", got)
	}
	if _, err := client.HGet(ctx, key, "GET /offline"); err != Nil {
		t.Fatalf("expected Nil for missing field, got %v", err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.HGet(ctx, key, "GET /"); err != Nil {
		t.Fatalf("expected Nil after del, got %v", err)
	}
}

func TestSetMembers(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.CacheIndexKey()

	if err := client.SAdd(ctx, key, "v1", "v2", "v1"); err != nil {
		t.Fatalf("sadd failed: %v", err)
	}
	if err := client.SRem(ctx, key, "v1"); err != nil {
		t.Fatalf("srem failed: %v", err)
	}
	members, err := client.SMembers(ctx, key)
	if err != nil {
		t.Fatalf("smembers failed: %v", err)
	}
	if len(members) != 1 || members[0] != "v2" {
		t.Fatalf("unexpected members %v", members)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without raw client should be a no-op: %v", err)
	}
	var nilClient *Client
	if _, err := nilClient.Get(context.Background(), "k"); err != errNotInitialized {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("push", "abc"); got != "vendorr:idempotency:push:abc" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.CartKey("vendorr-cart", "s1"); got != "vendorr:cart:vendorr-cart:s1" {
		t.Fatalf("unexpected cart key %s", got)
	}
	if got := client.CartKey("vendorr-cart", ""); got != "vendorr:cart:vendorr-cart" {
		t.Fatalf("session-less cart key should skip empty parts, got %s", got)
	}
	if got := client.CacheKey("vendorr-v1.0.0"); got != "vendorr:cache:gen:vendorr-v1.0.0" {
		t.Fatalf("unexpected cache key %s", got)
	}
	if got := client.CacheActiveKey(); got != "vendorr:cache:active" {
		t.Fatalf("unexpected active key %s", got)
	}
	if got := client.LockKey("connectivity"); got != "vendorr:lock:connectivity" {
		t.Fatalf("unexpected lock key %s", got)
	}
}

func TestOptionsFromConfigRequiresEndpoint(t *testing.T) {
	if _, err := optionsFromConfig(redisConfigForTest("", "")); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(redisConfigForTest("", "localhost:6380"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.PoolSize != 4 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestOptionsFromConfigKeepsURLSettings(t *testing.T) {
	cfg := redisConfigForTest("redis://:secret@cache:6379/3?pool_size=9", "")
	cfg.DB = 1
	cfg.DialTimeout = 2 * time.Second
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 9 || opts.Password != "secret" {
		t.Fatalf("url settings should win, got db=%d pool=%d", opts.DB, opts.PoolSize)
	}
	if opts.DialTimeout != 2*time.Second || opts.MinIdleConns != 1 {
		t.Fatalf("config should fill unset options, got %+v", opts)
	}
}

func redisConfigForTest(url, addr string) config.RedisConfig {
	return config.RedisConfig{URL: url, Address: addr, PoolSize: 4, MinIdleConns: 1}
}

type mockCmdable struct {
	data   map[string]string
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:   make(map[string]string),
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func stringify(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = stringify(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = stringify(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.hashes, key)
		delete(m.sets, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[stringify(values[i])] = stringify(values[i+1])
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (m *mockCmdable) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	v, ok := m.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd {
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	for _, member := range members {
		s[stringify(member)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *mockCmdable) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	out := []string{}
	for member := range m.sets[key] {
		out = append(out, member)
	}
	sort.Strings(out)
	return redis.NewStringSliceResult(out, nil)
}

func (m *mockCmdable) SRem(ctx context.Context, key string, members ...any) *redis.IntCmd {
	for _, member := range members {
		delete(m.sets[key], stringify(member))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}
