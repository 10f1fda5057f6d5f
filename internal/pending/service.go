package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendorr/vendorr-edge/pkg/db/models"
	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/metrics"
	"github.com/vendorr/vendorr-edge/pkg/vendorrapi"
)

// Sync tags understood by the controller.
const (
	TagOrderSync        = "order-sync"
	TagNotificationSync = "notification-sync"
)

// Submitter posts a stored order payload to the backend.
type Submitter interface {
	CreateOrderRaw(ctx context.Context, token, idempotencyKey string, payload []byte) (*vendorrapi.Order, error)
}

// FailureReporter surfaces a dropped submission to the user.
type FailureReporter interface {
	ReportSubmissionFailure(ctx context.Context, failure models.PendingSubmissionFailure) error
}

// EnqueueInput captures an order the backend could not be reached for.
type EnqueueInput struct {
	SessionID      string
	IdempotencyKey string
	AuthToken      string
	Payload        []byte
}

// ReplayResult summarises one order-sync pass.
type ReplayResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ServiceParams wires the replay service.
type ServiceParams struct {
	Repo      Repository
	Submitter Submitter
	Reporter  FailureReporter
	Metrics   *metrics.SyncMetrics
	Logger    *logger.Logger
	BatchSize int
}

// Service owns the deferred order queue.
type Service struct {
	repo      Repository
	submitter Submitter
	reporter  FailureReporter
	metrics   *metrics.SyncMetrics
	logg      *logger.Logger
	batchSize int
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pending repository required")
	}
	if params.Submitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order submitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Service{
		repo:      params.Repo,
		submitter: params.Submitter,
		reporter:  params.Reporter,
		metrics:   params.Metrics,
		logg:      params.Logger,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

// Enqueue stores an order payload for the next order-sync pass.
func (s *Service) Enqueue(ctx context.Context, input EnqueueInput) (*models.PendingSubmission, error) {
	if !json.Valid(input.Payload) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pending payload must be json")
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	row := &models.PendingSubmission{
		ID:             uuid.NewString(),
		Tag:            TagOrderSync,
		SessionID:      input.SessionID,
		IdempotencyKey: key,
		AuthToken:      input.AuthToken,
		Payload:        string(input.Payload),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue pending order")
	}
	s.info(s.withSubmission(ctx, *row), "order queued for replay")
	return row, nil
}

// Pending returns how many orders wait for replay.
func (s *Service) Pending(ctx context.Context) (int64, error) {
	count, err := s.repo.CountByTag(ctx, TagOrderSync)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending orders")
	}
	return count, nil
}

// Failures lists submissions dropped after a failed replay, newest first.
func (s *Service) Failures(ctx context.Context, limit int) ([]models.PendingSubmissionFailure, error) {
	rows, err := s.repo.ListFailures(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list failed submissions")
	}
	return rows, nil
}

// Replay posts every queued order once. Each row is removed before its POST
// so no payload is ever sent twice by the queue; a failed POST is recorded in
// the failures table and reported, never re-queued.
func (s *Service) Replay(ctx context.Context) (ReplayResult, error) {
	var result ReplayResult
	for {
		rows, err := s.repo.ListByTag(ctx, TagOrderSync, s.batchSize)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
		}
		if len(rows) == 0 {
			return result, nil
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			claimed, err := s.repo.Claim(ctx, row.ID)
			if err != nil {
				return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim pending order")
			}
			if !claimed {
				continue
			}
			result.Attempted++
			if s.replayOne(ctx, row) {
				result.Succeeded++
			} else {
				result.Failed++
			}
		}
		if len(rows) < s.batchSize {
			return result, nil
		}
	}
}

func (s *Service) replayOne(ctx context.Context, row models.PendingSubmission) bool {
	ctx = s.withSubmission(ctx, row)
	order, err := s.submitter.CreateOrderRaw(ctx, row.AuthToken, row.IdempotencyKey, []byte(row.Payload))
	if err == nil {
		s.metrics.IncReplay("success")
		if s.logg != nil {
			s.logg.Info(s.logg.WithOrderID(ctx, order.Identifier()), "pending order replayed")
		}
		return true
	}

	outcome := "failure"
	if errors.Is(err, vendorrapi.ErrUnreachable) {
		outcome = "unreachable"
	}
	s.metrics.IncReplay(outcome)
	if s.logg != nil {
		s.logg.Error(ctx, "pending order replay failed", err)
	}

	failure := models.PendingSubmissionFailure{
		ID:             uuid.NewString(),
		SubmissionID:   row.ID,
		SessionID:      row.SessionID,
		IdempotencyKey: row.IdempotencyKey,
		Payload:        row.Payload,
		StatusCode:     vendorrapi.StatusOf(err),
		Reason:         err.Error(),
		FailedAt:       s.now().UTC(),
	}
	if err := s.repo.CreateFailure(ctx, &failure); err != nil && s.logg != nil {
		s.logg.Error(ctx, "recording failed submission", err)
	}
	if s.reporter != nil {
		if err := s.reporter.ReportSubmissionFailure(ctx, failure); err != nil && s.logg != nil {
			s.logg.Error(ctx, "reporting failed submission", fmt.Errorf("submission %s: %w", row.ID, err))
		}
	}
	return false
}

func (s *Service) withSubmission(ctx context.Context, row models.PendingSubmission) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, map[string]any{
		"submission_id":   row.ID,
		"session_id":      row.SessionID,
		"idempotency_key": row.IdempotencyKey,
	})
}

func (s *Service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}
