package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectLot is a production lot within a client project. Materials-to-order
// requests belong to a lot.
type ProjectLot struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code       string    `gorm:"column:code;type:text;not null;uniqueIndex" json:"code"`
	Name       string    `gorm:"column:name;type:text;not null" json:"name"`
	ClientName *string   `gorm:"column:client_name;type:text" json:"client_name,omitempty"`
	IsDeleted  bool      `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
