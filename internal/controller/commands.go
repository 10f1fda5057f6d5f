// Package controller runs the background cache and sync worker. Callers
// never invoke it directly: they post typed commands to its mailbox and
// observe results on an event stream.
package controller

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/vendorr/vendorr-edge/internal/pending"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/vendorrapi"
)

// CommandType names a mailbox command.
type CommandType string

const (
	CommandSkipWaiting CommandType = "SKIP_WAITING"
	CommandCacheOrder  CommandType = "CACHE_ORDER"
	CommandSync        CommandType = "SYNC"
	CommandPush        CommandType = "PUSH"
)

// Command is one mailbox entry.
type Command struct {
	Type       CommandType     `json:"type"`
	RequestID  string          `json:"request_id,omitempty"`
	OrderID    string          `json:"order_id,omitempty"`
	Order      json.RawMessage `json:"order,omitempty"`
	Tag        string          `json:"tag,omitempty"`
	Token      string          `json:"-"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	DeliveryID string          `json:"delivery_id,omitempty"`
}

// Validate checks that cmd carries what its type needs.
func (c Command) Validate() error {
	switch c.Type {
	case CommandSkipWaiting:
		return nil
	case CommandCacheOrder:
		if !json.Valid(c.Order) {
			return pkgerrors.New(pkgerrors.CodeValidation, "order must be a json document")
		}
		if c.CachedOrderID() == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
		}
		return nil
	case CommandSync:
		switch c.Tag {
		case pending.TagOrderSync, pending.TagNotificationSync:
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown sync tag "+c.Tag)
	case CommandPush:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown command "+string(c.Type))
	}
}

// CachedOrderID is the id an order copy is stored under: OrderID when set,
// otherwise the id field of the order document.
func (c Command) CachedOrderID() string {
	if id := strings.TrimSpace(c.OrderID); id != "" {
		return id
	}
	var doc struct {
		ID json.RawMessage `json:"id"`
	}
	if len(c.Order) == 0 || json.Unmarshal(c.Order, &doc) != nil || len(doc.ID) == 0 {
		return ""
	}
	return strings.TrimSpace(vendorrapi.RawID(doc.ID))
}

// EventType names a published result.
type EventType string

const (
	EventActivated         EventType = "ACTIVATED"
	EventOrderCached       EventType = "ORDER_CACHED"
	EventSyncComplete      EventType = "SYNC_COMPLETE"
	EventNotificationShown EventType = "NOTIFICATION_SHOWN"
	EventCommandFailed     EventType = "COMMAND_FAILED"
)

// Event is the outcome of one command.
type Event struct {
	Type      EventType   `json:"type"`
	Command   CommandType `json:"command"`
	RequestID string      `json:"request_id"`
	Tag       string      `json:"tag,omitempty"`
	Error     string      `json:"error,omitempty"`
	Data      any         `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}
