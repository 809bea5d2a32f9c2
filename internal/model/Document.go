package model

import (
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"gorm.io/gorm"
)

type Document struct {
	BaseModel
	Title string `gorm:"type:varchar(100);not null" json:"title"`
	// Nil for link based flows where nobody owns an account.
	OwnerID      *string                 `gorm:"type:text;index" json:"ownerId"`
	TemplateID   string                  `gorm:"type:text;not null;index" json:"templateId"`
	Status       constant.DocumentStatus `gorm:"type:varchar(30);not null;index" json:"status"`
	SigningToken string                  `gorm:"type:text;not null;uniqueIndex" json:"-"`
	// When false every signer may act regardless of order index.
	SigningOrderEnforced bool `gorm:"not null" json:"signingOrderEnforced"`
	// Bumped on every status transition, used for conditional writes.
	Version        int            `gorm:"not null" json:"-"`
	SentAt         *time.Time     `json:"sentAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	FinishedFileID *string        `gorm:"type:text" json:"-"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Template     Template `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	FinishedFile *File    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Signers      []Signer `gorm:"foreignKey:DocumentID" json:"signers,omitempty"`
}

func (d Document) TableName() string {
	return "documents"
}
