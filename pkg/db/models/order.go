package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
)

// Order is the header row of a completed sale. TotalPrice is the subtotal
// before tax and discount.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null"`
	TotalPrice      decimal.Decimal   `gorm:"column:total_price;type:numeric(10,2);not null"`
	TaxApplied      decimal.Decimal   `gorm:"column:tax_applied;type:numeric(10,2);not null;default:0"`
	DiscountApplied decimal.Decimal   `gorm:"column:discount_applied;type:numeric(10,2);not null;default:0"`
	CustomerName    *string           `gorm:"column:customer_name"`
	CustomerPhone   *string           `gorm:"column:customer_phone"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// FinalTotal is what the customer paid.
func (o Order) FinalTotal() decimal.Decimal {
	return o.TotalPrice.Add(o.TaxApplied).Sub(o.DiscountApplied)
}
