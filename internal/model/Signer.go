package model

import (
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
)

type Signer struct {
	BaseModel
	DocumentID string `gorm:"type:text;not null;index;uniqueIndex:idx_signer_document_email" json:"documentId"`
	Email      string `gorm:"type:citext;not null;uniqueIndex:idx_signer_document_email" json:"email"`
	Name       string `gorm:"type:varchar(100)" json:"name"`
	// Free form, matched literally against SignatureSpot.Role.
	Role        string                `gorm:"type:varchar(100);not null" json:"role"`
	OrderIndex  int                   `gorm:"type:integer;not null" json:"orderIndex"`
	AccessToken string                `gorm:"type:text;not null;uniqueIndex" json:"-"`
	Status      constant.SignerStatus `gorm:"type:varchar(20);not null" json:"status"`
	Version     int                   `gorm:"not null" json:"-"`

	ViewedAt      *time.Time `json:"viewedAt,omitempty"`
	SignedAt      *time.Time `json:"signedAt,omitempty"`
	DeclinedAt    *time.Time `json:"declinedAt,omitempty"`
	DeclineReason string     `gorm:"type:text" json:"declineReason,omitempty"`

	Document Document `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

func (s Signer) TableName() string {
	return "signers"
}
