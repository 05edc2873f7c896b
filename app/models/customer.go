package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type Customer struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index" json:"user_id"`
	Name      string         `gorm:"type:varchar(200)" json:"name" validate:"required,min=2,max=200"`
	Email     string         `gorm:"type:varchar(200);index" json:"email" validate:"omitempty,email,max=200"`
	Phone     string         `gorm:"type:varchar(50)" json:"phone" validate:"max=50"`
	Address   string         `gorm:"type:varchar(255)" json:"address" validate:"max=255"`
	Notes     string         `gorm:"type:text" json:"notes"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Customer) Validate() error {
	v := validator.New()

	return v.Struct(c)
}
