package models

import (
	"time"

	"github.com/google/uuid"
)

// Stock holds the on-hand count for a product. Quantity never goes negative.
type Stock struct {
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity      int       `gorm:"column:quantity;not null;default:0;check:chk_stock_quantity_non_negative,quantity >= 0"`
	MinStockLevel int       `gorm:"column:min_stock_level;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Stock) TableName() string {
	return "stock"
}
