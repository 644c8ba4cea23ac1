package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only record of a successful mutation. Writes happen
// after the mutation commits; a failed audit write never fails the mutation.
type AuditLog struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ActorUserID uuid.UUID       `gorm:"column:actor_user_id;type:uuid;not null;index" json:"actor_user_id"`
	Action      string          `gorm:"column:action;type:text;not null" json:"action"`
	EntityType  string          `gorm:"column:entity_type;type:text;not null" json:"entity_type"`
	EntityID    uuid.UUID       `gorm:"column:entity_id;type:uuid;not null" json:"entity_id"`
	Detail      json.RawMessage `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
