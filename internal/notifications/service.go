package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vendorr/vendorr-edge/pkg/db/models"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/idempotency"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/metrics"
	"github.com/vendorr/vendorr-edge/pkg/pagination"
	"github.com/vendorr/vendorr-edge/pkg/vendorrapi"
)

const pushConsumer = "push"

// Backend is the slice of the REST client the inbox talks to.
type Backend interface {
	Notifications(ctx context.Context, token string) ([]vendorrapi.RemoteNotification, error)
	MarkNotificationRead(ctx context.Context, token, id string) error
	MarkAllNotificationsRead(ctx context.Context, token string) error
}

// ServiceParams wires the inbox service.
type ServiceParams struct {
	Repo        Repository
	Backend     Backend
	Idempotency *idempotency.Manager
	Metrics     *metrics.SyncMetrics
	Logger      *logger.Logger
}

// Service owns the device inbox and every way a notification reaches it.
type Service struct {
	repo        Repository
	backend     Backend
	idempotency *idempotency.Manager
	metrics     *metrics.SyncMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// ListParams configures pagination for the inbox.
type ListParams struct {
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// Item is one inbox entry as returned to the UI.
type Item struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Category  string         `json:"notification_type,omitempty"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
	Read      bool           `json:"read"`
	Timestamp time.Time      `json:"timestamp"`
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items       []Item `json:"items"`
	Cursor      string `json:"cursor"`
	UnreadCount int64  `json:"unread_count"`
}

// Delivery is the outcome of presenting one envelope.
type Delivery struct {
	Presentation Presentation `json:"presentation"`
	Duplicate    bool         `json:"duplicate"`
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &Service{
		repo:        params.Repo,
		backend:     params.Backend,
		idempotency: params.Idempotency,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

// Present records env in the inbox and returns what the device should show.
// An envelope whose id is already in the inbox is reported as a duplicate.
func (s *Service) Present(ctx context.Context, env Envelope) (Delivery, error) {
	row, err := toModel(env)
	if err != nil {
		return Delivery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode notification data")
	}
	inserted, err := s.repo.Insert(ctx, row)
	if err != nil {
		return Delivery{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store notification")
	}
	if !inserted {
		return Delivery{Presentation: Present(env), Duplicate: true}, nil
	}
	s.metrics.IncPresented(string(env.Source))
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"notification_id": env.ID,
			"source":          string(env.Source),
		}), "notification presented")
	}
	return Delivery{Presentation: Present(env)}, nil
}

// Push handles a raw push payload. fallbackID identifies the delivery when
// the payload carries no id of its own.
func (s *Service) Push(ctx context.Context, raw []byte, fallbackID string) (Delivery, error) {
	env, err := DecodePush(raw, s.now())
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "push payload unreadable, showing defaults")
	}
	if !hasID(raw) && fallbackID != "" {
		env.ID = fallbackID
	}

	if s.idempotency != nil {
		already, err := s.idempotency.CheckAndMarkProcessed(ctx, pushConsumer, env.ID)
		if err != nil {
			return Delivery{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "push idempotency check")
		}
		if already {
			return Delivery{Presentation: Present(env), Duplicate: true}, nil
		}
	}

	delivery, err := s.Present(ctx, env)
	if err != nil && s.idempotency != nil {
		_ = s.idempotency.Delete(ctx, pushConsumer, env.ID)
	}
	return delivery, err
}

// Sync pulls the backend feed and presents every unread notification.
func (s *Service) Sync(ctx context.Context, token string) ([]Delivery, error) {
	if s.backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications backend not configured")
	}
	remote, err := s.backend.Notifications(ctx, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnreachable, err, "fetch notifications")
	}
	now := s.now()
	out := []Delivery{}
	for _, n := range remote {
		if !n.Unread {
			continue
		}
		delivery, err := s.Present(ctx, FromRemote(n, now))
		if err != nil {
			return out, err
		}
		if !delivery.Duplicate {
			out = append(out, delivery)
		}
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listNotificationsParams{
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.UnreadCount(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, toItem(row))
	}
	return &ListResult{Items: items, Cursor: cursor, UnreadCount: unread}, nil
}

func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	count, err := s.repo.UnreadCount(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

// MarkRead marks one notification read locally and, when a token is given,
// on the backend. Backend failures are logged, not returned.
func (s *Service) MarkRead(ctx context.Context, token, notificationID string) error {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}

	if token != "" && s.backend != nil {
		if err := s.backend.MarkNotificationRead(ctx, token, notificationID); err != nil {
			s.warnBackend(ctx, "propagating read mark failed", err)
		}
	}
	return nil
}

// MarkAllRead marks every notification read, propagating best-effort.
func (s *Service) MarkAllRead(ctx context.Context, token string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	if token != "" && s.backend != nil {
		if err := s.backend.MarkAllNotificationsRead(ctx, token); err != nil {
			s.warnBackend(ctx, "propagating read-all failed", err)
		}
	}
	return updated, nil
}

// Clear removes one notification from the inbox.
func (s *Service) Clear(ctx context.Context, notificationID string) error {
	deleted, err := s.repo.Delete(ctx, strings.TrimSpace(notificationID))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear notification")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

// ClearAll empties the inbox.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear notifications")
	}
	return deleted, nil
}

// ReportSubmissionFailure tells the user a queued order was dropped.
func (s *Service) ReportSubmissionFailure(ctx context.Context, failure models.PendingSubmissionFailure) error {
	reference := submittedReference(failure)
	data := map[string]any{
		"submission_id":     failure.SubmissionID,
		"idempotency_key":   failure.IdempotencyKey,
		"payment_reference": reference,
	}
	if failure.StatusCode != 0 {
		data["status"] = failure.StatusCode
	}
	_, err := s.Present(ctx, normalize(Envelope{
		ID:       "submission-failure-" + failure.ID,
		Title:    "Order could not be submitted",
		Body:     fmt.Sprintf("Your order %s was not accepted after reconnecting. Please place it again.", reference),
		Kind:     KindError,
		Category: "order_sync",
		Data:     data,
		Source:   SourceLocal,
	}, s.now()))
	return err
}

// submittedReference is the payment reference the customer saw, read from
// the queued payload. The idempotency key stands in when there is none.
func submittedReference(failure models.PendingSubmissionFailure) string {
	var order struct {
		PaymentReference string `json:"payment_reference"`
	}
	if json.Unmarshal([]byte(failure.Payload), &order) == nil && order.PaymentReference != "" {
		return order.PaymentReference
	}
	return failure.IdempotencyKey
}

func (s *Service) warnBackend(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func hasID(raw []byte) bool {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return vendorrapi.RawID(probe.ID) != ""
}

func toModel(env Envelope) (*models.Notification, error) {
	data, err := json.Marshal(env.Data)
	if err != nil {
		return nil, err
	}
	return &models.Notification{
		ID:        env.ID,
		Title:     env.Title,
		Message:   env.Body,
		Kind:      string(env.Kind),
		Category:  env.Category,
		Source:    string(env.Source),
		Data:      string(data),
		CreatedAt: env.Timestamp.UTC(),
	}, nil
}

func toItem(row models.Notification) Item {
	data := map[string]any{}
	if row.Data != "" {
		_ = json.Unmarshal([]byte(row.Data), &data)
	}
	return Item{
		ID:        row.ID,
		Title:     row.Title,
		Message:   row.Message,
		Type:      row.Kind,
		Category:  row.Category,
		Source:    row.Source,
		Data:      data,
		Read:      row.ReadAt != nil,
		Timestamp: row.CreatedAt,
	}
}
