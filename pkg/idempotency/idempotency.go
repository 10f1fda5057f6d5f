package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vendorr/vendorr-edge/pkg/redis"
)

// Manager tracks delivered envelope IDs per consumer using SETNX with a TTL.
// Keys follow the `vendorr:idempotency:evt:processed:<consumer>:<id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks envelopes as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the envelope has already been processed and
// otherwise marks it as processed with the configured TTL.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, id string) (bool, error) {
	key, err := m.processedKey(consumer, id)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete forgets an envelope so a later redelivery is processed again.
func (m *Manager) Delete(ctx context.Context, consumer, id string) error {
	key, err := m.processedKey(consumer, id)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer, id string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(id) == "" {
		return "", errors.New("envelope id is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", consumer)
	return m.store.IdempotencyKey(scope, id), nil
}

// MemoryStore is a process-local IdempotencyStore for single-node deployments
// that run without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	expires map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, expires: make(map[string]time.Time)}
}

func (s *MemoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.expires[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	s.expires[key] = exp
	return true, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.expires, key)
	}
	return nil
}

func (s *MemoryStore) IdempotencyKey(scope, id string) string {
	return "vendorr:idempotency:" + scope + ":" + id
}
