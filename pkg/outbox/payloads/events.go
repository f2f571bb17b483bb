package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCompletedEvent is emitted in the checkout transaction once the order,
// its items and the stock deductions are written.
type OrderCompletedEvent struct {
	OrderID         uuid.UUID          `json:"order_id"`
	UserID          uuid.UUID          `json:"user_id"`
	TotalPrice      string             `json:"total_price"`
	TaxApplied      string             `json:"tax_applied"`
	DiscountApplied string             `json:"discount_applied"`
	FinalTotal      string             `json:"final_total"`
	Items           []OrderItemPayload `json:"items"`
	CompletedAt     time.Time          `json:"completed_at"`
}

// OrderItemPayload is one sold line.
type OrderItemPayload struct {
	ProductID       uuid.UUID `json:"product_id"`
	Quantity        int       `json:"quantity"`
	UnitPriceAtSale string    `json:"unit_price_at_sale"`
}

// StockLowEvent is emitted when a sale leaves a product at or under its
// reorder threshold.
type StockLowEvent struct {
	ProductID     uuid.UUID `json:"product_id"`
	Quantity      int       `json:"quantity"`
	MinStockLevel int       `json:"min_stock_level"`
}
