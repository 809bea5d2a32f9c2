package model

import (
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
)

// SignerSession hands a signer's access over to a second device for a limited time.
type SignerSession struct {
	BaseModel
	SignerID  string                       `gorm:"type:text;not null;index" json:"signerId"`
	Token     string                       `gorm:"type:text;not null;uniqueIndex" json:"-"`
	Status    constant.SignerSessionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	IssuedAt  time.Time                    `gorm:"not null;index" json:"issuedAt"`
	ClaimedAt *time.Time                   `json:"claimedAt,omitempty"`

	Signer Signer `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (ss SignerSession) TableName() string {
	return "signer_sessions"
}
