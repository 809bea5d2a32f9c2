package model

type User struct {
	BaseModel
	Email string `gorm:"unique;not null;type:citext" json:"email" form:"email" binding:"required,email"`
	Name  string `gorm:"type:varchar(100);not null;" json:"name" form:"name" binding:"required"`
}

func (u User) TableName() string {
	return "users"
}
