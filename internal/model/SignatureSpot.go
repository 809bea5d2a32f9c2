package model

import "github.com/SeakMengs/AutoSign/internal/constant"

// SignatureSpot belongs to a template, never to a document instance. Role is
// matched against Signer.Role by exact string equality.
type SignatureSpot struct {
	Placement
	BaseModel

	TemplateID string             `gorm:"type:text;not null;uniqueIndex:idx_template_spot_key" json:"templateId" form:"templateId"`
	SpotKey    string             `gorm:"type:varchar(100);not null;uniqueIndex:idx_template_spot_key" json:"spotKey" form:"spotKey" binding:"required,strNotEmpty"`
	FieldType  constant.FieldType `gorm:"type:varchar(20);not null" json:"fieldType" form:"fieldType" binding:"required"`
	Role       string             `gorm:"type:varchar(100);not null" json:"role" form:"role" binding:"required,strNotEmpty"`
}

func (ss SignatureSpot) TableName() string {
	return "signature_spots"
}
