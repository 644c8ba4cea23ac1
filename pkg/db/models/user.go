package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakline/cabinetry-backend/pkg/enums"
)

// User is an employee account able to authenticate against the API.
type User struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string           `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	PasswordHash string           `gorm:"column:password_hash;type:text;not null" json:"-"`
	FullName     string           `gorm:"column:full_name;type:text;not null" json:"full_name"`
	Role         enums.MemberRole `gorm:"column:role;type:member_role;not null" json:"role"`
	IsDeleted    bool             `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
