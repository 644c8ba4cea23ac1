package models

import (
	"time"

	"github.com/google/uuid"
)

// Supplier is a vendor the workshop orders inventory from.
type Supplier struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;type:text;not null" json:"name"`
	Email     *string   `gorm:"column:email;type:text" json:"email,omitempty"`
	Phone     *string   `gorm:"column:phone;type:text" json:"phone,omitempty"`
	IsDeleted bool      `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
