package model

type ExportStatus string

const (
	ExportStatusPending  ExportStatus = "pending"
	ExportStatusUploaded ExportStatus = "uploaded"
	ExportStatusFailed   ExportStatus = "failed"
)

type DocumentExport struct {
	BaseModel
	DocumentID string       `gorm:"type:text;not null;index" json:"documentId"`
	UserID     string       `gorm:"type:text;not null" json:"userId"`
	Provider   string       `gorm:"type:varchar(50);not null" json:"provider"`
	Status     ExportStatus `gorm:"type:varchar(20);not null" json:"status"`
	RemoteID   string       `gorm:"type:text" json:"remoteId,omitempty"`
	Error      string       `gorm:"type:text" json:"error,omitempty"`
}

func (de DocumentExport) TableName() string {
	return "document_exports"
}
