// Package cart holds the per-session order draft: identity-keyed line items,
// quantity mutation and derived totals, persisted after every change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// ErrNotFound is returned by a Store when nothing was persisted yet.
var ErrNotFound = errors.New("cart not found")

// Store persists the serialised cart of one session.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, data []byte) error
}

// Product is the orderable item handed to AddItem.
type Product struct {
	ID    string          `json:"id" validate:"required"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem is one distinct product and customization set with its quantity.
type LineItem struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name,omitempty"`
	BasePrice      decimal.Decimal `json:"base_price"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Customizations Customizations  `json:"customizations"`
	Quantity       int             `json:"quantity"`
	AddedAt        time.Time       `json:"added_at"`

	key string
}

// LineTotal is UnitPrice times Quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Key returns the identity key of the line.
func (l LineItem) Key() string {
	if l.key == "" {
		return IdentityKey(l.ProductID, l.Customizations)
	}
	return l.key
}

func (l LineItem) clone() LineItem {
	l.Customizations = l.Customizations.Clone()
	return l
}

// Engine owns one session's cart. All operations are serialised by a mutex so
// they observe a total order by call order.
type Engine struct {
	mu        sync.Mutex
	sessionID string
	store     Store
	logg      *logger.Logger
	now       func() time.Time

	items    []LineItem
	dirty    bool
	disposed bool
}

// NewEngine builds an empty engine. Call Init to rehydrate persisted state.
func NewEngine(sessionID string, store Store, logg *logger.Logger) *Engine {
	return &Engine{
		sessionID: sessionID,
		store:     store,
		logg:      logg,
		now:       time.Now,
		items:     []LineItem{},
	}
}

// SessionID returns the owning session.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Init loads the persisted cart. Unreadable or corrupt data leaves the cart
// empty; the read error is returned so the caller can log it.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	data, err := e.store.Load(ctx, e.sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	items, err := Decode(data)
	if err != nil {
		e.warn(ctx, "discarding unreadable persisted cart", err)
		return nil
	}
	e.items = items
	return nil
}

// Dispose flushes state a failed save left unpersisted. Later mutations are
// ignored.
func (e *Engine) Dispose(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil
	}
	e.disposed = true
	if !e.dirty {
		return nil
	}
	return e.persistLocked(ctx)
}

// AddItem merges quantity into the line matching product and customizations,
// or appends a new line with the unit price snapshotted from the product price
// plus every option modifier. quantity 0 means 1 and negatives are clamped to
// 1. A product without id or with a negative price is ignored.
func (e *Engine) AddItem(ctx context.Context, product Product, customizations Customizations, quantity int) (LineItem, bool) {
	if strings.TrimSpace(product.ID) == "" || product.Price.IsNegative() {
		return LineItem{}, false
	}
	if quantity < 1 {
		quantity = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return LineItem{}, false
	}

	key := IdentityKey(product.ID, customizations)
	var line LineItem
	if idx := e.indexLocked(key); idx >= 0 {
		e.items[idx].Quantity += quantity
		line = e.items[idx].clone()
	} else {
		line = LineItem{
			ProductID:      product.ID,
			Name:           product.Name,
			BasePrice:      product.Price,
			UnitPrice:      product.Price.Add(customizations.PriceModifier()),
			Customizations: customizations.Clone(),
			Quantity:       quantity,
			AddedAt:        e.now().UTC(),
			key:            key,
		}
		e.items = append(e.items, line)
		line = line.clone()
	}
	e.saveLocked(ctx)
	return line, true
}

// RemoveItem deletes the matching line. Absent lines are a no-op.
func (e *Engine) RemoveItem(ctx context.Context, productID string, customizations Customizations) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}

	idx := e.indexLocked(IdentityKey(productID, customizations))
	if idx < 0 {
		return
	}
	e.items = append(e.items[:idx], e.items[idx+1:]...)
	e.saveLocked(ctx)
}

// UpdateQuantity sets the matching line's quantity. quantity <= 0 removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, customizations Customizations, quantity int) {
	if quantity <= 0 {
		e.RemoveItem(ctx, productID, customizations)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}

	idx := e.indexLocked(IdentityKey(productID, customizations))
	if idx < 0 {
		return
	}
	e.items[idx].Quantity = quantity
	e.saveLocked(ctx)
}

// Clear empties the cart and persists the empty state.
func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.items = []LineItem{}
	e.saveLocked(ctx)
}

// Snapshot is a consistent view of the cart: every field is read under one
// lock.
type Snapshot struct {
	Items     []LineItem
	Total     decimal.Decimal
	ItemCount int
}

// Snapshot returns the lines with their derived totals.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Items:     e.itemsLocked(),
		Total:     e.totalLocked(),
		ItemCount: e.countLocked(),
	}
}

// Items returns a copy of the lines in insertion order.
func (e *Engine) Items() []LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.itemsLocked()
}

// Total sums every line total.
func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalLocked()
}

// ItemCount sums quantities across lines.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.countLocked()
}

func (e *Engine) itemsLocked() []LineItem {
	out := make([]LineItem, 0, len(e.items))
	for _, item := range e.items {
		out = append(out, item.clone())
	}
	return out
}

func (e *Engine) totalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (e *Engine) countLocked() int {
	count := 0
	for _, item := range e.items {
		count += item.Quantity
	}
	return count
}

// IsInCart reports whether a line with this identity exists.
func (e *Engine) IsInCart(productID string, customizations Customizations) bool {
	return e.Quantity(productID, customizations) > 0
}

// Quantity returns the quantity of the matching line, or 0.
func (e *Engine) Quantity(productID string, customizations Customizations) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if idx := e.indexLocked(IdentityKey(productID, customizations)); idx >= 0 {
		return e.items[idx].Quantity
	}
	return 0
}

func (e *Engine) indexLocked(key string) int {
	for i := range e.items {
		if e.items[i].Key() == key {
			return i
		}
	}
	return -1
}

// saveLocked persists after a mutation. Failures keep the in-memory state
// and leave the engine dirty.
func (e *Engine) saveLocked(ctx context.Context) {
	e.dirty = true
	if err := e.persistLocked(ctx); err != nil {
		e.warn(ctx, "persisting cart failed", err)
	}
}

func (e *Engine) persistLocked(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	data, err := Encode(e.items)
	if err != nil {
		return err
	}
	if err := e.store.Save(ctx, e.sessionID, data); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

func (e *Engine) warn(ctx context.Context, msg string, err error) {
	if e.logg == nil {
		return
	}
	ctx = e.logg.WithFields(ctx, map[string]any{"session_id": e.sessionID, "error": err.Error()})
	e.logg.Warn(ctx, msg)
}

// Encode serialises lines as a JSON array in order.
func Encode(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

// Decode parses a persisted cart. Lines with an empty product id or a
// quantity below 1 are dropped and lines sharing an identity are merged, so
// the result always satisfies the cart invariants.
func Decode(data []byte) ([]LineItem, error) {
	var raw []LineItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	items := make([]LineItem, 0, len(raw))
	positions := make(map[string]int, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity < 1 {
			continue
		}
		item.key = IdentityKey(item.ProductID, item.Customizations)
		if idx, ok := positions[item.key]; ok {
			items[idx].Quantity += item.Quantity
			continue
		}
		positions[item.key] = len(items)
		items = append(items, item)
	}
	return items, nil
}
