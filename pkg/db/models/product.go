package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. Price is the current sell price; orders copy it
// into order_items at sale time.
type Product struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name       string          `gorm:"column:name;not null"`
	Category   string          `gorm:"column:category;not null"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	ExpiryDate *time.Time      `gorm:"column:expiry_date;type:date"`
	SupplierID *uuid.UUID      `gorm:"column:supplier_id;type:uuid"`
	ImageURL   *string         `gorm:"column:image_url"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
