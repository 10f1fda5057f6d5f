package models

import (
	"time"
)

// PendingSubmission is an order payload captured while the backend was
// unreachable. Rows are replayed once by the order-sync tag and then removed.
type PendingSubmission struct {
	ID             string    `gorm:"column:id;type:text;primaryKey"`
	Tag            string    `gorm:"column:tag;type:text;not null"`
	SessionID      string    `gorm:"column:session_id;type:text"`
	IdempotencyKey string    `gorm:"column:idempotency_key;type:text;not null"`
	AuthToken      string    `gorm:"column:auth_token;type:text"`
	Payload        string    `gorm:"column:payload;type:text;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

func (PendingSubmission) TableName() string { return "pending_submissions" }

// PendingSubmissionFailure keeps a copy of a replayed payload the backend
// rejected or never answered.
type PendingSubmissionFailure struct {
	ID             string    `gorm:"column:id;type:text;primaryKey"`
	SubmissionID   string    `gorm:"column:submission_id;type:text;not null"`
	SessionID      string    `gorm:"column:session_id;type:text"`
	IdempotencyKey string    `gorm:"column:idempotency_key;type:text;not null"`
	Payload        string    `gorm:"column:payload;type:text;not null"`
	StatusCode     int       `gorm:"column:status_code;not null;default:0"`
	Reason         string    `gorm:"column:reason;type:text;not null"`
	FailedAt       time.Time `gorm:"column:failed_at;not null"`
}

func (PendingSubmissionFailure) TableName() string { return "pending_submission_failures" }
