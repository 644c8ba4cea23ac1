package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakline/cabinetry-backend/pkg/enums"
)

// PurchaseOrder is an order placed with a supplier for inventory items. Status
// is derived from the received-vs-ordered comparison across all lines and is
// never recomputed once the order is cancelled.
type PurchaseOrder struct {
	ID                 uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Reference          string         `gorm:"column:reference;type:text;not null" json:"reference"`
	SupplierID         uuid.UUID      `gorm:"column:supplier_id;type:uuid;not null;index" json:"supplier_id"`
	MaterialsToOrderID *uuid.UUID     `gorm:"column:materials_to_order_id;type:uuid;index" json:"materials_to_order_id,omitempty"`
	Status             enums.POStatus `gorm:"column:status;type:po_status;not null;default:placed" json:"status"`
	IsDeleted          bool           `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Items []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID" json:"items,omitempty"`
}
