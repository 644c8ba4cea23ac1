package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderItem is one line of a purchase order. QuantityReceived can only
// grow, and never beyond Quantity.
type PurchaseOrderItem struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PurchaseOrderID  uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null;index" json:"purchase_order_id"`
	ItemID           uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	Quantity         int             `gorm:"column:quantity;not null" json:"quantity"`
	QuantityReceived int             `gorm:"column:quantity_received;not null;default:0" json:"quantity_received"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
