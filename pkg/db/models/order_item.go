package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem snapshots the unit price at the moment of sale. Rows are never
// updated after insert.
type OrderItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPriceAtSale decimal.Decimal `gorm:"column:unit_price_at_sale;type:numeric(10,2);not null"`
	LineNumber      int             `gorm:"column:line_number;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// ItemTotal is quantity times the captured unit price.
func (i OrderItem) ItemTotal() decimal.Decimal {
	return i.UnitPriceAtSale.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
