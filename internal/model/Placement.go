package model

// Placement is where a field sits on a template page, in PDF points from the top-left corner.
type Placement struct {
	Page   uint    `gorm:"type:integer;not null" json:"page" form:"page" binding:"required,gte=1"`
	X      float64 `gorm:"type:double precision;not null" json:"x" form:"x"`
	Y      float64 `gorm:"type:double precision;not null" json:"y" form:"y"`
	Width  float64 `gorm:"type:double precision;not null" json:"width" form:"width" binding:"required,gt=0"`
	Height float64 `gorm:"type:double precision;not null" json:"height" form:"height" binding:"required,gt=0"`
}
