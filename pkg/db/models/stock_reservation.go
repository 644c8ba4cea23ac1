package models

import (
	"time"

	"github.com/google/uuid"
)

// StockReservation holds part of an item's quantity for a materials-to-order
// line before it is consumed. The reserved amount has already been deducted
// from Item.quantity; deleting the reservation puts it back.
type StockReservation struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ItemID                 uuid.UUID `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	MaterialsToOrderItemID uuid.UUID `gorm:"column:materials_to_order_item_id;type:uuid;not null;index" json:"materials_to_order_item_id"`
	Quantity               int       `gorm:"column:quantity;not null" json:"quantity"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
