package model

// Token tracks issued owner refresh tokens so they can be rotated or revoked.
type Token struct {
	BaseModel
	RefreshToken string `gorm:"type:text;not null;uniqueIndex" json:"-"`
	CanRefresh   bool   `gorm:"not null" json:"canRefresh"`

	UserID string `gorm:"type:text;not null;index" json:"userId"`
	User   User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (t Token) TableName() string {
	return "tokens"
}
