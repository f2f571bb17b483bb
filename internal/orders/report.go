package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
)

// SalesSummary aggregates completed orders within a time window.
type SalesSummary struct {
	From         time.Time
	To           time.Time
	OrderCount   int64
	UnitsSold    int64
	Subtotal     decimal.Decimal
	TaxCollected decimal.Decimal
	Discounts    decimal.Decimal
	Revenue      decimal.Decimal
	TopProducts  []ProductSales
}

// ProductSales is revenue per product computed from the captured sale price.
type ProductSales struct {
	ProductID   uuid.UUID       `gorm:"column:product_id"`
	ProductName string          `gorm:"column:product_name"`
	UnitsSold   int64           `gorm:"column:units_sold"`
	Revenue     decimal.Decimal `gorm:"column:revenue"`
}

type headerTotals struct {
	OrderCount int64               `gorm:"column:order_count"`
	Tax        decimal.NullDecimal `gorm:"column:tax"`
	Discount   decimal.NullDecimal `gorm:"column:discount"`
}

type itemTotals struct {
	UnitsSold int64               `gorm:"column:units_sold"`
	Subtotal  decimal.NullDecimal `gorm:"column:subtotal"`
}

const topProductsLimit = 10

const salesHeaderQuery = `
SELECT COUNT(*) AS order_count,
       SUM(o.tax_applied) AS tax,
       SUM(o.discount_applied) AS discount
FROM orders o
WHERE o.status = ? AND o.created_at >= ? AND o.created_at < ?
`

const salesItemsQuery = `
SELECT COALESCE(SUM(oi.quantity), 0) AS units_sold,
       SUM(oi.quantity * oi.unit_price_at_sale) AS subtotal
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.status = ? AND o.created_at >= ? AND o.created_at < ?
`

const topProductsQuery = `
SELECT oi.product_id,
       p.name AS product_name,
       SUM(oi.quantity) AS units_sold,
       SUM(oi.quantity * oi.unit_price_at_sale) AS revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN products p ON p.id = oi.product_id
WHERE o.status = ? AND o.created_at >= ? AND o.created_at < ?
GROUP BY oi.product_id, p.name
ORDER BY revenue DESC, p.name ASC
LIMIT ?
`

// SalesSummary sums revenue from order_items.unit_price_at_sale, so later
// catalog price changes never rewrite history.
func (r *repository) SalesSummary(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	db := r.db.WithContext(ctx)
	status := enums.OrderStatusCompleted

	var header headerTotals
	if err := db.Raw(salesHeaderQuery, status, from, to).Scan(&header).Error; err != nil {
		return nil, err
	}
	var items itemTotals
	if err := db.Raw(salesItemsQuery, status, from, to).Scan(&items).Error; err != nil {
		return nil, err
	}
	top := []ProductSales{}
	if err := db.Raw(topProductsQuery, status, from, to, topProductsLimit).Scan(&top).Error; err != nil {
		return nil, err
	}
	for i := range top {
		top[i].Revenue = top[i].Revenue.Round(2)
	}

	summary := &SalesSummary{
		From:         from,
		To:           to,
		OrderCount:   header.OrderCount,
		UnitsSold:    items.UnitsSold,
		Subtotal:     items.Subtotal.Decimal.Round(2),
		TaxCollected: header.Tax.Decimal.Round(2),
		Discounts:    header.Discount.Decimal.Round(2),
		TopProducts:  top,
	}
	summary.Revenue = summary.Subtotal.Add(summary.TaxCollected).Sub(summary.Discounts)
	return summary, nil
}
