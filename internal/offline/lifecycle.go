package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// State is the lifecycle stage of one cache generation.
type State string

const (
	StateInstalling        State = "INSTALLING"
	StateWaitingToActivate State = "WAITING_TO_ACTIVATE"
	StateActive            State = "ACTIVE"
	StateRetired           State = "RETIRED"
	StateRedundant         State = "REDUNDANT"
)

type fetcher interface {
	Get(ctx context.Context, path string) (*http.Response, error)
}

// LifecycleConfig names the generation this build ships and its manifest.
type LifecycleConfig struct {
	Generation    string
	Manifest      []string
	AutoTakeOver  bool
	MaxEntryBytes int64
}

// Lifecycle installs, activates and retires cache generations. It is the only
// writer of the cache store; lookups always target the serving generation.
type Lifecycle struct {
	mu       sync.RWMutex
	store    Store
	upstream fetcher
	cfg      LifecycleConfig
	logg     *logger.Logger
	now      func() time.Time

	serving string
	states  map[string]State
}

// NewLifecycle wires the generation manager.
func NewLifecycle(store Store, upstream fetcher, cfg LifecycleConfig, logg *logger.Logger) (*Lifecycle, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if upstream == nil {
		return nil, fmt.Errorf("upstream required")
	}
	if cfg.Generation == "" {
		return nil, fmt.Errorf("cache generation required")
	}
	return &Lifecycle{
		store:    store,
		upstream: upstream,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
		states:   make(map[string]State),
	}, nil
}

// Start resumes the persisted active generation, then installs (and with
// auto take-over activates) the configured one when it differs. A failed
// install leaves the previous generation serving and is returned.
func (l *Lifecycle) Start(ctx context.Context) error {
	active, err := l.store.Active(ctx)
	if err != nil {
		return fmt.Errorf("reading active cache generation: %w", err)
	}

	l.mu.Lock()
	l.serving = active
	if active != "" {
		l.states[active] = StateActive
	}
	l.mu.Unlock()

	if active == l.cfg.Generation {
		l.info(ctx, "cache generation already active")
		return nil
	}
	if err := l.Install(ctx); err != nil {
		return err
	}
	if l.cfg.AutoTakeOver {
		return l.Activate(ctx)
	}
	return nil
}

// Install pre-caches every manifest path into the configured generation. Any
// failure drops the partial generation and marks it redundant.
func (l *Lifecycle) Install(ctx context.Context) error {
	gen := l.cfg.Generation
	l.mu.Lock()
	if l.states[gen] == StateInstalling {
		l.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cache generation %s is already installing", gen))
	}
	l.states[gen] = StateInstalling
	l.mu.Unlock()

	for _, path := range l.cfg.Manifest {
		entry, err := l.fetchEntry(ctx, path)
		if err == nil {
			err = l.store.Put(ctx, gen, KeyFor(http.MethodGet, path, ""), entry)
		}
		if err != nil {
			dropErr := l.store.DropGeneration(ctx, gen)
			l.setState(gen, StateRedundant)
			return multierr.Append(
				pkgerrors.Wrap(pkgerrors.CodeUnreachable, err, fmt.Sprintf("installing cache generation %s: %s", gen, path)),
				dropErr,
			)
		}
	}

	l.setState(gen, StateWaitingToActivate)
	l.info(ctx, "cache generation installed")
	return nil
}

// Activate makes the installed generation the serving one and deletes every
// other generation.
func (l *Lifecycle) Activate(ctx context.Context) error {
	gen := l.cfg.Generation

	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.states[gen] {
	case StateActive:
		return nil
	case StateWaitingToActivate:
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cache generation %s is %s", gen, l.stateLocked(gen)))
	}

	if err := l.store.SetActive(ctx, gen); err != nil {
		return fmt.Errorf("recording active generation: %w", err)
	}
	l.serving = gen
	l.states[gen] = StateActive

	generations, err := l.store.Generations(ctx)
	if err != nil {
		return fmt.Errorf("listing cache generations: %w", err)
	}
	var errs error
	for _, other := range generations {
		if other == gen {
			continue
		}
		if err := l.store.DropGeneration(ctx, other); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dropping generation %s: %w", other, err))
			continue
		}
		l.states[other] = StateRetired
	}
	l.info(ctx, "cache generation activated")
	return errs
}

// SkipWaiting forces activation of the configured generation, installing it
// first when an earlier install failed.
func (l *Lifecycle) SkipWaiting(ctx context.Context) error {
	if l.State() == StateRedundant {
		if err := l.Install(ctx); err != nil {
			return err
		}
	}
	return l.Activate(ctx)
}

// Recover retries a failed install of the configured generation and, with
// auto take-over, activates it. Any other state is left alone.
func (l *Lifecycle) Recover(ctx context.Context) error {
	if l.State() != StateRedundant {
		return nil
	}
	if err := l.Install(ctx); err != nil {
		return err
	}
	if l.cfg.AutoTakeOver {
		return l.Activate(ctx)
	}
	return nil
}

// Serving returns the generation lookups go to, or "" when none is active.
func (l *Lifecycle) Serving() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.serving
}

// Ready reports whether some generation is serving.
func (l *Lifecycle) Ready() bool {
	return l.Serving() != ""
}

// State returns the state of the configured generation.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stateLocked(l.cfg.Generation)
}

// StateOf returns the state recorded for any generation seen by this process.
func (l *Lifecycle) StateOf(generation string) State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stateLocked(generation)
}

// Generation returns the configured generation name.
func (l *Lifecycle) Generation() string {
	return l.cfg.Generation
}

// Match looks key up in the serving generation.
func (l *Lifecycle) Match(ctx context.Context, key string) (Entry, error) {
	gen := l.Serving()
	if gen == "" {
		return Entry{}, ErrMiss
	}
	return l.store.Match(ctx, gen, key)
}

// Put stores entry in the serving generation.
func (l *Lifecycle) Put(ctx context.Context, key string, entry Entry) error {
	gen := l.Serving()
	if gen == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no active cache generation")
	}
	if entry.CapturedAt.IsZero() {
		entry.CapturedAt = l.now().UTC()
	}
	return l.store.Put(ctx, gen, key, entry)
}

// OrderCopyPath is where an offline copy of an order is served from.
func OrderCopyPath(orderID string) string {
	return "/offline-order-" + orderID
}

// StoreOrderCopy saves an order document so it can be served while offline.
func (l *Lifecycle) StoreOrderCopy(ctx context.Context, orderID string, body []byte) error {
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !json.Valid(body) {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must be a json document")
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return l.Put(ctx, KeyFor(http.MethodGet, OrderCopyPath(orderID), ""), Entry{
		Status: http.StatusOK,
		Header: header,
		Body:   body,
	})
}

func (l *Lifecycle) fetchEntry(ctx context.Context, path string) (Entry, error) {
	resp, err := l.upstream.Get(ctx, path)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Entry{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	reader := io.Reader(resp.Body)
	if l.cfg.MaxEntryBytes > 0 {
		reader = io.LimitReader(resp.Body, l.cfg.MaxEntryBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return Entry{}, err
	}
	if l.cfg.MaxEntryBytes > 0 && int64(len(body)) > l.cfg.MaxEntryBytes {
		return Entry{}, fmt.Errorf("asset larger than %d bytes", l.cfg.MaxEntryBytes)
	}
	return Entry{
		Status:     resp.StatusCode,
		Header:     storableHeader(resp.Header),
		Body:       body,
		CapturedAt: l.now().UTC(),
	}, nil
}

func (l *Lifecycle) setState(gen string, state State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[gen] = state
}

func (l *Lifecycle) stateLocked(gen string) State {
	if state, ok := l.states[gen]; ok {
		return state
	}
	return StateRedundant
}

func (l *Lifecycle) info(ctx context.Context, msg string) {
	if l.logg == nil {
		return
	}
	l.logg.Info(l.logg.WithField(ctx, "generation", l.cfg.Generation), msg)
}
