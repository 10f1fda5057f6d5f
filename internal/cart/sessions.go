package cart

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/vendorr/vendorr-edge/pkg/logger"
)

const (
	DefaultMaxSessions = 10000
	DefaultIdleTTL     = 30 * time.Minute
)

// SessionLimits bounds the registry. Zero values take the defaults.
type SessionLimits struct {
	MaxSessions int
	IdleTTL     time.Duration
}

type sessionEntry struct {
	id       string
	engine   *Engine
	lastUsed time.Time
}

// Sessions hands out one engine per client session, created and rehydrated
// lazily. Engines are kept in least-recently-used order; the oldest is
// disposed when MaxSessions is exceeded and EvictIdle drops those unused for
// IdleTTL.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	recency *list.List
	store   Store
	logg    *logger.Logger
	limits  SessionLimits
	now     func() time.Time
}

// NewSessions builds a registry persisting through store.
func NewSessions(store Store, logg *logger.Logger, limits SessionLimits) (*Sessions, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = DefaultMaxSessions
	}
	if limits.IdleTTL <= 0 {
		limits.IdleTTL = DefaultIdleTTL
	}
	return &Sessions{
		entries: make(map[string]*list.Element),
		recency: list.New(),
		store:   store,
		logg:    logg,
		limits:  limits,
		now:     time.Now,
	}, nil
}

// Get returns the session's engine, rehydrating it on first use.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*Engine, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}

	s.mu.Lock()
	if elem, ok := s.entries[sessionID]; ok {
		entry := elem.Value.(*sessionEntry)
		entry.lastUsed = s.now()
		s.recency.MoveToFront(elem)
		s.mu.Unlock()
		return entry.engine, nil
	}

	engine := NewEngine(sessionID, s.store, s.logg)
	if err := engine.Init(ctx); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"session_id": sessionID, "error": err.Error()})
		s.logg.Warn(logCtx, "cart rehydration failed, starting empty")
	}
	s.entries[sessionID] = s.recency.PushFront(&sessionEntry{id: sessionID, engine: engine, lastUsed: s.now()})

	var overflow []*sessionEntry
	for s.recency.Len() > s.limits.MaxSessions {
		overflow = append(overflow, s.removeLocked(s.recency.Back()))
	}
	s.mu.Unlock()

	if err := s.dispose(ctx, overflow); err != nil {
		s.warn(ctx, "disposing least recently used carts failed", err)
	}
	return engine, nil
}

// EvictIdle disposes every engine unused for IdleTTL and returns how many
// were dropped.
func (s *Sessions) EvictIdle(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.limits.IdleTTL)

	s.mu.Lock()
	var idle []*sessionEntry
	for elem := s.recency.Back(); elem != nil; elem = s.recency.Back() {
		if elem.Value.(*sessionEntry).lastUsed.After(cutoff) {
			break
		}
		idle = append(idle, s.removeLocked(elem))
	}
	s.mu.Unlock()

	return len(idle), s.dispose(ctx, idle)
}

// Len reports how many sessions are loaded.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recency.Len()
}

// Close disposes every engine, flushing unsaved state.
func (s *Sessions) Close(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*sessionEntry, 0, s.recency.Len())
	for elem := s.recency.Front(); elem != nil; elem = elem.Next() {
		all = append(all, elem.Value.(*sessionEntry))
	}
	s.entries = make(map[string]*list.Element)
	s.recency.Init()
	s.mu.Unlock()

	return s.dispose(ctx, all)
}

func (s *Sessions) removeLocked(elem *list.Element) *sessionEntry {
	entry := s.recency.Remove(elem).(*sessionEntry)
	delete(s.entries, entry.id)
	return entry
}

func (s *Sessions) dispose(ctx context.Context, entries []*sessionEntry) error {
	var errs error
	for _, entry := range entries {
		if err := entry.engine.Dispose(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dispose cart %s: %w", entry.id, err))
		}
	}
	return errs
}

func (s *Sessions) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
