package models

import (
	"time"

	"github.com/google/uuid"
)

// MaterialsToOrderItem is one line of a materials-to-order request. Quantity
// is the required amount; QuantityUsed counts stock already consumed and
// QuantityOrderedPO counts stock ordered through linked purchase orders.
type MaterialsToOrderItem struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MaterialsToOrderID uuid.UUID `gorm:"column:materials_to_order_id;type:uuid;not null;index" json:"materials_to_order_id"`
	ItemID             uuid.UUID `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	Quantity           int       `gorm:"column:quantity;not null" json:"quantity"`
	QuantityUsed       int       `gorm:"column:quantity_used;not null;default:0" json:"quantity_used"`
	QuantityOrderedPO  int       `gorm:"column:quantity_ordered_po;not null;default:0" json:"quantity_ordered_po"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
