package notifications

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendorr/vendorr-edge/pkg/vendorrapi"
)

const (
	DefaultTitle = "Vendorr Update"
	DefaultBody  = "You have a new notification"
)

// Kind is the display flavour of a notification.
type Kind string

const (
	KindInfo        Kind = "info"
	KindSuccess     Kind = "success"
	KindWarning     Kind = "warning"
	KindError       Kind = "error"
	KindOrderUpdate Kind = "order_update"
)

func (k Kind) valid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError, KindOrderUpdate:
		return true
	}
	return false
}

// Source records which channel delivered a notification.
type Source string

const (
	SourcePush     Source = "push"
	SourceRealtime Source = "realtime"
	SourceSync     Source = "sync"
	SourceLocal    Source = "local"
)

// Envelope is a notification after defaults have been applied. Every channel
// converts its wire shape into an Envelope before anything else sees it.
type Envelope struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Kind      Kind           `json:"type"`
	Category  string         `json:"notification_type,omitempty"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Source    Source         `json:"source"`
}

// wireNotification is the union of the push, realtime and REST shapes.
type wireNotification struct {
	ID               json.RawMessage `json:"id"`
	Type             string          `json:"type"`
	Title            string          `json:"title"`
	Body             string          `json:"body"`
	Message          string          `json:"message"`
	NotificationType string          `json:"notification_type"`
	Data             map[string]any  `json:"data"`
	Timestamp        string          `json:"timestamp"`
}

// DecodePush turns a push payload into an envelope. A payload that is not a
// JSON object still yields a default envelope alongside the decode error.
func DecodePush(raw []byte, now time.Time) (Envelope, error) {
	var wire wireNotification
	if len(strings.TrimSpace(string(raw))) == 0 {
		return normalize(Envelope{Source: SourcePush}, now), nil
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return normalize(Envelope{Source: SourcePush}, now), fmt.Errorf("decode push payload: %w", err)
	}
	env := fromWire(wire, SourcePush)
	if env.Body == "" {
		env.Body = wire.Message
	}
	return normalize(env, now), nil
}

// DecodeRealtime turns a realtime frame into an envelope. ok is false for
// heartbeat replies and connection acknowledgements.
func DecodeRealtime(frame []byte, now time.Time) (env Envelope, ok bool, err error) {
	text := strings.TrimSpace(string(frame))
	if text == "" || text == "pong" {
		return Envelope{}, false, nil
	}
	var wire wireNotification
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return Envelope{}, false, fmt.Errorf("decode realtime frame: %w", err)
	}
	if wire.Type == "connection" || wire.Type == "pong" {
		return Envelope{}, false, nil
	}
	env = fromWire(wire, SourceRealtime)
	env.Body = wire.Message
	if env.Body == "" {
		env.Body = wire.Body
	}
	return normalize(env, now), true, nil
}

// FromRemote converts a notification pulled from the backend.
func FromRemote(remote vendorrapi.RemoteNotification, now time.Time) Envelope {
	env := Envelope{
		ID:       vendorrapi.RawID(remote.ID),
		Title:    remote.Title,
		Body:     remote.Message,
		Kind:     Kind(remote.Type),
		Category: remote.NotificationType,
		Data:     remote.Data,
		Source:   SourceSync,
	}
	env.Timestamp = parseTimestamp(remote.Timestamp)
	return normalize(env, now)
}

func fromWire(wire wireNotification, source Source) Envelope {
	return Envelope{
		ID:        vendorrapi.RawID(wire.ID),
		Title:     wire.Title,
		Body:      wire.Body,
		Kind:      Kind(wire.Type),
		Category:  wire.NotificationType,
		Data:      wire.Data,
		Timestamp: parseTimestamp(wire.Timestamp),
		Source:    source,
	}
}

func normalize(env Envelope, now time.Time) Envelope {
	env.Title = strings.TrimSpace(env.Title)
	if env.Title == "" {
		env.Title = DefaultTitle
	}
	env.Body = strings.TrimSpace(env.Body)
	if env.Body == "" {
		env.Body = DefaultBody
	}
	if !env.Kind.valid() {
		env.Kind = KindInfo
	}
	if env.Data == nil {
		env.Data = map[string]any{}
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = now
	}
	env.Timestamp = env.Timestamp.UTC()
	if env.Source == "" {
		env.Source = SourceLocal
	}
	return env
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
