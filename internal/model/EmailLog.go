package model

import "github.com/SeakMengs/AutoSign/internal/constant"

type EmailLog struct {
	BaseModel
	DocumentID string               `gorm:"type:text;not null;index" json:"documentId"`
	SignerID   *string              `gorm:"type:text" json:"signerId,omitempty"`
	Template   string               `gorm:"type:varchar(100);not null" json:"template"`
	ToEmail    string               `gorm:"type:citext;not null" json:"toEmail"`
	Status     constant.EmailStatus `gorm:"type:varchar(20);not null" json:"status"`
	Error      string               `gorm:"type:text" json:"error,omitempty"`
}

func (el EmailLog) TableName() string {
	return "email_logs"
}
