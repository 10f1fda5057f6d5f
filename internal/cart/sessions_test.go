package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSessionsReuseEngines(t *testing.T) {
	ctx := context.Background()
	sessions, err := NewSessions(newMemoryStore(), nil, SessionLimits{})
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}

	a, err := sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := sessions.Get(ctx, " s1 ")
	if a != b {
		t.Fatal("expected the same engine for one session")
	}
	c, _ := sessions.Get(ctx, "s2")
	if a == c {
		t.Fatal("expected distinct engines per session")
	}
	if sessions.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sessions.Len())
	}
	if _, err := sessions.Get(ctx, ""); err == nil {
		t.Fatal("expected empty session id to fail")
	}
}

func TestSessionsRehydrateAndClose(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.data["s1"] = []byte(`[{"product_id": "p1", "unit_price": "10", "quantity": 3}]`)

	sessions, _ := NewSessions(store, nil, SessionLimits{})
	engine, _ := sessions.Get(ctx, "s1")
	if engine.Quantity("p1", nil) != 3 {
		t.Fatalf("expected rehydrated quantity 3, got %d", engine.Quantity("p1", nil))
	}

	store.saveErr = errors.New("read only")
	engine.AddItem(ctx, product("p2", 5), nil, 1)
	if err := sessions.Close(ctx); err == nil {
		t.Fatal("expected flush error to be reported")
	}
	if sessions.Len() != 0 {
		t.Fatal("close should drop every engine")
	}
}

func TestSessionsCloseSkipsUntouchedCarts(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	sessions, _ := NewSessions(store, nil, SessionLimits{})
	for i := 0; i < 50; i++ {
		if _, err := sessions.Get(ctx, fmt.Sprintf("visitor-%d", i)); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if err := sessions.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("read-only sessions must not be persisted, saves %d", store.saves)
	}
}

func TestSessionsCapDisposesLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	sessions, _ := NewSessions(newMemoryStore(), nil, SessionLimits{MaxSessions: 3})

	first, _ := sessions.Get(ctx, "s1")
	first.AddItem(ctx, product("p1", 10), nil, 1)
	sessions.Get(ctx, "s2")
	sessions.Get(ctx, "s3")
	if again, _ := sessions.Get(ctx, "s1"); again != first {
		t.Fatal("expected s1 to still be loaded")
	}

	sessions.Get(ctx, "s4")
	if sessions.Len() != 3 {
		t.Fatalf("registry must stay at its cap, got %d", sessions.Len())
	}

	for i := 0; i < 1000; i++ {
		sessions.Get(ctx, fmt.Sprintf("anon-%d", i))
	}
	if sessions.Len() != 3 {
		t.Fatalf("registry grew past its cap: %d", sessions.Len())
	}

	reloaded, _ := sessions.Get(ctx, "s1")
	if reloaded == first {
		t.Fatal("evicted session should be rebuilt")
	}
	if reloaded.Quantity("p1", nil) != 1 {
		t.Fatalf("evicted cart should rehydrate from the store, got %d", reloaded.Quantity("p1", nil))
	}
	if first.AddItem(ctx, product("p2", 1), nil, 1); first.Quantity("p2", nil) != 0 {
		t.Fatal("an evicted engine must ignore mutations")
	}
}

func TestSessionsEvictIdle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	sessions, _ := NewSessions(newMemoryStore(), nil, SessionLimits{IdleTTL: 10 * time.Minute})
	sessions.now = func() time.Time { return now }

	sessions.Get(ctx, "stale")
	now = now.Add(6 * time.Minute)
	sessions.Get(ctx, "recent")
	now = now.Add(5 * time.Minute)

	evicted, err := sessions.EvictIdle(ctx)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if evicted != 1 || sessions.Len() != 1 {
		t.Fatalf("expected only the stale session evicted, evicted=%d left=%d", evicted, sessions.Len())
	}

	now = now.Add(time.Minute)
	sessions.Get(ctx, "recent")
	now = now.Add(9 * time.Minute)
	if evicted, _ := sessions.EvictIdle(ctx); evicted != 0 {
		t.Fatalf("use must refresh the idle clock, evicted %d", evicted)
	}
}

func TestSessionsLoadFailureStartsEmpty(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("unavailable")
	sessions, _ := NewSessions(store, nil, SessionLimits{})

	engine, err := sessions.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("load failures must not fail Get: %v", err)
	}
	if engine.ItemCount() != 0 {
		t.Fatal("expected an empty cart")
	}
}

func TestNewSessionsRequiresStore(t *testing.T) {
	if _, err := NewSessions(nil, nil, SessionLimits{}); err == nil {
		t.Fatal("expected missing store error")
	}
}
