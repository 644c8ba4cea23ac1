package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakline/cabinetry-backend/pkg/enums"
)

// StockTransaction is an append-only ledger row recording a single inventory
// quantity change and its cause. Rows are created inside the same database
// transaction as the Item.quantity update and are never mutated or deleted.
type StockTransaction struct {
	ID                 uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ItemID             uuid.UUID                  `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	Type               enums.StockTransactionType `gorm:"column:type;type:stock_transaction_type;not null" json:"type"`
	Quantity           int                        `gorm:"column:quantity;not null" json:"quantity"`
	PurchaseOrderID    *uuid.UUID                 `gorm:"column:purchase_order_id;type:uuid" json:"purchase_order_id,omitempty"`
	MaterialsToOrderID *uuid.UUID                 `gorm:"column:materials_to_order_id;type:uuid" json:"materials_to_order_id,omitempty"`
	Note               *string                    `gorm:"column:note;type:text" json:"note,omitempty"`
	CreatedAt          time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
