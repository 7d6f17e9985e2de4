package models

import "time"

// SyncDocument stores one whole JSON document (the outbox queue, a
// notification snapshot) under a stable key.
type SyncDocument struct {
	DocKey    string    `gorm:"column:doc_key;type:text;primaryKey"`
	Body      string    `gorm:"column:body;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (SyncDocument) TableName() string {
	return "sync_documents"
}
