package model

// SignatureAsset is the captured content of one spot on one document. The
// (document, spot key) pair is unique so a second write is an update.
type SignatureAsset struct {
	BaseModel
	DocumentID string `gorm:"type:text;not null;uniqueIndex:idx_asset_document_spot" json:"documentId"`
	SpotKey    string `gorm:"type:varchar(100);not null;uniqueIndex:idx_asset_document_spot" json:"spotKey"`
	SignerID   string `gorm:"type:text;not null;index" json:"signerId"`
	// Typed value (text, date, typed signature) or empty when the asset is an image file.
	Content     string  `gorm:"type:text" json:"content,omitempty"`
	FileID      *string `gorm:"type:text" json:"-"`
	ContentHash string  `gorm:"type:varchar(64);not null" json:"contentHash"`

	File *File `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
}

func (sa SignatureAsset) TableName() string {
	return "signature_assets"
}
