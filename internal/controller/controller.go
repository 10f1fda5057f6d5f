package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendorr/vendorr-edge/internal/notifications"
	"github.com/vendorr/vendorr-edge/internal/pending"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/metrics"
)

const defaultMailboxSize = 64

type lifecycle interface {
	SkipWaiting(ctx context.Context) error
	StoreOrderCopy(ctx context.Context, orderID string, body []byte) error
	Serving() string
}

type replayer interface {
	Replay(ctx context.Context) (pending.ReplayResult, error)
}

type inbox interface {
	Sync(ctx context.Context, token string) ([]notifications.Delivery, error)
	Push(ctx context.Context, raw []byte, fallbackID string) (notifications.Delivery, error)
}

// Params wires the controller.
type Params struct {
	Lifecycle   lifecycle
	Replayer    replayer
	Inbox       inbox
	Metrics     *metrics.SyncMetrics
	Logger      *logger.Logger
	MailboxSize int
	// SyncToken authenticates notification-sync when a command carries none.
	SyncToken string
}

// Controller is the mailbox actor.
type Controller struct {
	lifecycle lifecycle
	replayer  replayer
	inbox     inbox
	metrics   *metrics.SyncMetrics
	logg      *logger.Logger
	syncToken string
	now       func() time.Time

	mailbox chan Command

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSub     int
}

func New(params Params) (*Controller, error) {
	if params.Lifecycle == nil {
		return nil, errors.New("cache lifecycle required")
	}
	if params.Replayer == nil {
		return nil, errors.New("pending replayer required")
	}
	if params.Inbox == nil {
		return nil, errors.New("notification inbox required")
	}
	size := params.MailboxSize
	if size <= 0 {
		size = defaultMailboxSize
	}
	return &Controller{
		lifecycle:   params.Lifecycle,
		replayer:    params.Replayer,
		inbox:       params.Inbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		syncToken:   params.SyncToken,
		now:         time.Now,
		mailbox:     make(chan Command, size),
		subscribers: make(map[int]chan Event),
	}, nil
}

// Send posts cmd to the mailbox without waiting for it to run. It returns
// the request id events for this command will carry.
func (c *Controller) Send(cmd Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	if cmd.RequestID == "" {
		cmd.RequestID = uuid.NewString()
	}
	select {
	case c.mailbox <- cmd:
		return cmd.RequestID, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeQueueFull, "controller mailbox is full")
	}
}

// Subscribe returns a channel receiving every event published after the
// call, and a function that stops the subscription. Events are dropped for a
// subscriber whose buffer is full.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

// Run processes commands one at a time until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.mailbox:
			c.publish(ctx, c.handle(ctx, cmd))
		}
	}
}

func (c *Controller) handle(ctx context.Context, cmd Command) (event Event) {
	event = Event{Command: cmd.Type, RequestID: cmd.RequestID, Tag: cmd.Tag}
	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, map[string]any{
			"command":    string(cmd.Type),
			"request_id": cmd.RequestID,
		})
	}
	defer func() {
		if r := recover(); r != nil {
			event = c.failed(ctx, event, fmt.Errorf("command panicked: %v", r))
		}
		event.At = c.now().UTC()
	}()

	switch cmd.Type {
	case CommandSkipWaiting:
		if err := c.lifecycle.SkipWaiting(ctx); err != nil {
			return c.failed(ctx, event, err)
		}
		event.Type = EventActivated
		event.Data = map[string]string{"generation": c.lifecycle.Serving()}
	case CommandCacheOrder:
		orderID := cmd.CachedOrderID()
		if err := c.lifecycle.StoreOrderCopy(ctx, orderID, cmd.Order); err != nil {
			return c.failed(ctx, event, err)
		}
		event.Type = EventOrderCached
		event.Data = map[string]string{"order_id": orderID}
	case CommandSync:
		return c.sync(ctx, cmd, event)
	case CommandPush:
		delivery, err := c.inbox.Push(ctx, cmd.Payload, cmd.DeliveryID)
		if err != nil {
			return c.failed(ctx, event, err)
		}
		event.Type = EventNotificationShown
		event.Data = delivery
	default:
		return c.failed(ctx, event, cmd.Validate())
	}
	return event
}

func (c *Controller) sync(ctx context.Context, cmd Command, event Event) Event {
	switch cmd.Tag {
	case pending.TagOrderSync:
		result, err := c.replayer.Replay(ctx)
		if err != nil {
			c.metrics.IncSync(cmd.Tag, "error")
			return c.failed(ctx, event, err)
		}
		event.Data = result
	case pending.TagNotificationSync:
		token := cmd.Token
		if token == "" {
			token = c.syncToken
		}
		deliveries, err := c.inbox.Sync(ctx, token)
		if err != nil {
			c.metrics.IncSync(cmd.Tag, "error")
			return c.failed(ctx, event, err)
		}
		event.Data = map[string]any{"presented": deliveries}
	default:
		return c.failed(ctx, event, cmd.Validate())
	}
	c.metrics.IncSync(cmd.Tag, "ok")
	event.Type = EventSyncComplete
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "tag", cmd.Tag), "sync complete")
	}
	return event
}

func (c *Controller) failed(ctx context.Context, event Event, err error) Event {
	if c.logg != nil {
		c.logg.Error(ctx, "controller command failed", err)
	}
	event.Type = EventCommandFailed
	event.Error = err.Error()
	return event
}

func (c *Controller) publish(ctx context.Context, event Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
			c.metrics.IncDroppedEvent()
			if c.logg != nil {
				c.logg.Warn(c.logg.WithField(ctx, "event", string(event.Type)), "event subscriber full, dropping event")
			}
		}
	}
}
