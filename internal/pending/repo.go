package pending

import (
	"context"

	"gorm.io/gorm"

	"github.com/vendorr/vendorr-edge/pkg/db/models"
)

// Repository exposes persistence helpers for the deferred submission queue.
type Repository interface {
	Create(ctx context.Context, submission *models.PendingSubmission) error
	ListByTag(ctx context.Context, tag string, limit int) ([]models.PendingSubmission, error)
	CountByTag(ctx context.Context, tag string) (int64, error)
	Claim(ctx context.Context, id string) (bool, error)
	CreateFailure(ctx context.Context, failure *models.PendingSubmissionFailure) error
	ListFailures(ctx context.Context, limit int) ([]models.PendingSubmissionFailure, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a pending submission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, submission *models.PendingSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *repositoryImpl) ListByTag(ctx context.Context, tag string, limit int) ([]models.PendingSubmission, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PendingSubmission{}).
		Where("tag = ?", tag).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.PendingSubmission
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) CountByTag(ctx context.Context, tag string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PendingSubmission{}).
		Where("tag = ?", tag).
		Count(&count).Error
	return count, err
}

// Claim deletes the row and reports whether this caller removed it. Only the
// caller that wins the claim may submit the payload.
func (r *repositoryImpl) Claim(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PendingSubmission{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repositoryImpl) CreateFailure(ctx context.Context, failure *models.PendingSubmissionFailure) error {
	return r.db.WithContext(ctx).Create(failure).Error
}

func (r *repositoryImpl) ListFailures(ctx context.Context, limit int) ([]models.PendingSubmissionFailure, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PendingSubmissionFailure{}).
		Order("failed_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.PendingSubmissionFailure
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
