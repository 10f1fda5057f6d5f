package models

import (
	"time"
)

// Notification is one inbox entry. IDs come from the backend when it supplies
// one, otherwise they are generated locally.
type Notification struct {
	ID        string     `gorm:"column:id;type:text;primaryKey"`
	Title     string     `gorm:"column:title;type:text;not null"`
	Message   string     `gorm:"column:message;type:text;not null"`
	Kind      string     `gorm:"column:kind;type:text;not null;default:info"`
	Category  string     `gorm:"column:category;type:text"`
	Source    string     `gorm:"column:source;type:text;not null"`
	Data      string     `gorm:"column:data;type:text;not null;default:'{}'"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
}

func (Notification) TableName() string { return "notifications" }
