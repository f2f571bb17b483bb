package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
)

// Money renders an amount as a fixed two-decimal string ("25.00").
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type Order struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	Status          string      `json:"status"`
	TotalPrice      string      `json:"total_price"`
	TaxApplied      string      `json:"tax_applied"`
	DiscountApplied string      `json:"discount_applied"`
	FinalTotal      string      `json:"final_total"`
	CustomerName    *string     `json:"customer_name"`
	CustomerPhone   *string     `json:"customer_phone"`
	CreatedAt       time.Time   `json:"created_at"`
	Items           []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	Quantity        int       `json:"quantity"`
	UnitPriceAtSale string    `json:"unit_price_at_sale"`
	ItemTotal       string    `json:"item_total"`
}

// NewOrder maps an order header. Items are included when withItems is set.
func NewOrder(order models.Order, withItems bool) Order {
	out := Order{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          string(order.Status),
		TotalPrice:      Money(order.TotalPrice),
		TaxApplied:      Money(order.TaxApplied),
		DiscountApplied: Money(order.DiscountApplied),
		FinalTotal:      Money(order.FinalTotal()),
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CreatedAt:       order.CreatedAt,
	}
	if !withItems {
		return out
	}
	out.Items = make([]OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		out.Items = append(out.Items, OrderItem{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPriceAtSale: Money(item.UnitPriceAtSale),
			ItemTotal:       Money(item.ItemTotal()),
		})
	}
	return out
}
