package model

import "time"

// StorageConnection holds a user's credentials for an external storage provider.
// Token columns only ever contain ciphertext produced by the credential cipher.
type StorageConnection struct {
	BaseModel
	UserID                string     `gorm:"type:text;not null;uniqueIndex:idx_storage_user_provider" json:"userId"`
	Provider              string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_storage_user_provider" json:"provider"`
	EncryptedAccessToken  string     `gorm:"type:text;not null" json:"-"`
	EncryptedRefreshToken string     `gorm:"type:text" json:"-"`
	KeyScope              string     `gorm:"type:text;not null" json:"-"`
	TokenExpiry           *time.Time `json:"tokenExpiry,omitempty"`
	AccountLabel          string     `gorm:"type:text" json:"accountLabel"`

	User User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (sc StorageConnection) TableName() string {
	return "storage_connections"
}
