package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakline/cabinetry-backend/pkg/enums"
)

// MaterialsToOrder is a request to reserve, use, or order material for a
// project lot. Status is derived from how much of each line is covered by
// reservations and purchase orders. UsedMaterialCompleted is a one-way flag:
// once true it can never be reverted.
type MaterialsToOrder struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	LotID                 uuid.UUID       `gorm:"column:lot_id;type:uuid;not null;index" json:"lot_id"`
	Status                enums.MTOStatus `gorm:"column:status;type:mto_status;not null;default:draft" json:"status"`
	UsedMaterialCompleted bool            `gorm:"column:used_material_completed;not null;default:false" json:"used_material_completed"`
	Note                  *string         `gorm:"column:note;type:text" json:"note,omitempty"`
	IsDeleted             bool            `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Items []MaterialsToOrderItem `gorm:"foreignKey:MaterialsToOrderID" json:"items,omitempty"`
}

func (MaterialsToOrder) TableName() string { return "materials_to_order" }
