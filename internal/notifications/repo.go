package notifications

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vendorr/vendorr-edge/pkg/db/models"
	"github.com/vendorr/vendorr-edge/pkg/pagination"
)

// Repository exposes persistence helpers for the inbox.
type Repository interface {
	Insert(ctx context.Context, notification *models.Notification) (bool, error)
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, notificationID string, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, now time.Time) (int64, error)
	Delete(ctx context.Context, notificationID string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listNotificationsParams struct {
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type notificationMarkResult struct {
	Updated bool
	Found   bool
}

// table scopes a query to the inbox table.
func (r *repositoryImpl) table(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{})
}

func unread(db *gorm.DB) *gorm.DB {
	return db.Where("read_at IS NULL")
}

// before pages strictly past cursor in (created_at, id) descending order.
func before(cursor *pagination.Cursor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cursor == nil {
			return db
		}
		return db.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
}

func affected(result *gorm.DB) (int64, error) {
	return result.RowsAffected, result.Error
}

// Insert is a no-op when the id already exists; it reports whether a row
// was written.
func (r *repositoryImpl) Insert(ctx context.Context, notification *models.Notification) (bool, error) {
	n, err := affected(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(notification))
	return n > 0, err
}

func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	query := r.table(ctx).Scopes(before(params.Cursor))
	if params.UnreadOnly {
		query = query.Scopes(unread)
	}
	var rows []models.Notification
	err := query.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	page, next := pagination.Split(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *repositoryImpl) UnreadCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.table(ctx).Scopes(unread).Count(&count).Error
	return count, err
}

// MarkRead distinguishes an already-read notification (Found, not Updated)
// from an unknown id.
func (r *repositoryImpl) MarkRead(ctx context.Context, notificationID string, now time.Time) (notificationMarkResult, error) {
	n, err := affected(r.table(ctx).Scopes(unread).Where("id = ?", notificationID).UpdateColumn("read_at", now))
	if err != nil {
		return notificationMarkResult{}, err
	}
	if n > 0 {
		return notificationMarkResult{Updated: true, Found: true}, nil
	}
	var count int64
	if err := r.table(ctx).Where("id = ?", notificationID).Count(&count).Error; err != nil {
		return notificationMarkResult{}, err
	}
	return notificationMarkResult{Found: count > 0}, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, now time.Time) (int64, error) {
	return affected(r.table(ctx).Scopes(unread).UpdateColumn("read_at", now))
}

func (r *repositoryImpl) Delete(ctx context.Context, notificationID string) (bool, error) {
	n, err := affected(r.db.WithContext(ctx).Where("id = ?", notificationID).Delete(&models.Notification{}))
	return n > 0, err
}

func (r *repositoryImpl) DeleteAll(ctx context.Context) (int64, error) {
	return affected(r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Notification{}))
}
