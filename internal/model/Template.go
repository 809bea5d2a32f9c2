package model

type Template struct {
	BaseModel
	Title          string `gorm:"type:varchar(100);not null;" json:"title" form:"title" binding:"required"`
	UserID         string `gorm:"type:text;not null;index" json:"userId" form:"userId"`
	TemplateFileID string `gorm:"type:text;not null" json:"-" form:"-"`

	TemplateFile File            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-" form:"-"`
	Spots        []SignatureSpot `gorm:"foreignKey:TemplateID" json:"spots,omitempty" form:"-"`
}

func (t Template) TableName() string {
	return "templates"
}
