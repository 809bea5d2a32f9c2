package model

import (
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEvent rows are written once and never updated or deleted.
type AuditEvent struct {
	ID         string                  `gorm:"type:text;primaryKey" json:"id"`
	DocumentID string                  `gorm:"type:text;not null;uniqueIndex:idx_audit_document_sequence" json:"documentId"`
	Sequence   int64                   `gorm:"not null;uniqueIndex:idx_audit_document_sequence" json:"sequence"`
	Kind       constant.AuditEventKind `gorm:"type:varchar(50);not null" json:"kind"`
	// Signer id, owner user id or "system".
	Actor     string         `gorm:"type:text;not null" json:"actor"`
	SignerID  *string        `gorm:"type:text;index" json:"signerId,omitempty"`
	IP        string         `gorm:"type:text" json:"ip"`
	UserAgent string         `gorm:"type:text" json:"userAgent"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	PrevHash  string         `gorm:"type:varchar(64);not null" json:"prevHash"`
	Hash      string         `gorm:"type:varchar(64);not null" json:"hash"`
	Timestamp time.Time      `gorm:"not null" json:"timestamp"`
}

func (ae *AuditEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if ae.ID == "" {
		ae.ID = uuid.NewString()
	}
	return
}

func (ae AuditEvent) TableName() string {
	return "audit_events"
}
