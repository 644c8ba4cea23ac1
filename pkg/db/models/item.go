package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakline/cabinetry-backend/pkg/enums"
)

// Item is a stocked inventory unit. Quantity is the mutable balance and only
// ever changes through the guarded stock delta primitive; every change has a
// matching StockTransaction row.
type Item struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string             `gorm:"column:name;type:text;not null" json:"name"`
	Category        enums.ItemCategory `gorm:"column:category;type:item_category;not null" json:"category"`
	Quantity        int                `gorm:"column:quantity;not null;default:0" json:"quantity"`
	MeasurementUnit string             `gorm:"column:measurement_unit;type:text;not null" json:"measurement_unit"`
	IsDeleted       bool               `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
