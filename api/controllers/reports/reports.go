package reports

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/api/controllers/dto"
	"github.com/angelmondragon/grocer-backend/api/responses"
	"github.com/angelmondragon/grocer-backend/api/validators"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

type lowStockService interface {
	LowStock(ctx context.Context) ([]stock.LowStockItem, error)
}

type salesService interface {
	Sales(ctx context.Context, from, to time.Time) (*orders.SalesSummary, error)
}

type lowStockItem struct {
	ProductID     uuid.UUID `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Category      string    `json:"category"`
	Quantity      int       `json:"quantity"`
	MinStockLevel int       `json:"min_stock_level"`
}

// LowStock lists products at or under their reorder threshold.
func LowStock(svc lowStockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		items, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]lowStockItem, 0, len(items))
		for _, item := range items {
			out = append(out, lowStockItem(item))
		}
		responses.WriteSuccess(w, map[string]any{"items": out})
	}
}

type salesResponse struct {
	From         time.Time      `json:"from"`
	To           time.Time      `json:"to"`
	OrderCount   int64          `json:"order_count"`
	UnitsSold    int64          `json:"units_sold"`
	Subtotal     string         `json:"subtotal"`
	TaxCollected string         `json:"tax_collected"`
	Discounts    string         `json:"discounts"`
	Revenue      string         `json:"revenue"`
	TopProducts  []productSales `json:"top_products"`
}

type productSales struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitsSold   int64     `json:"units_sold"`
	Revenue     string    `json:"revenue"`
}

// Sales summarizes completed orders in [from, to). When to is a plain date the
// whole day is included.
func Sales(svc salesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		from, err := validators.ParseQueryTime(r, "from", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if isDateOnly(r.URL.Query().Get("to")) {
			to = to.AddDate(0, 0, 1)
		}

		summary, err := svc.Sales(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		top := make([]productSales, 0, len(summary.TopProducts))
		for _, p := range summary.TopProducts {
			top = append(top, productSales{
				ProductID:   p.ProductID,
				ProductName: p.ProductName,
				UnitsSold:   p.UnitsSold,
				Revenue:     dto.Money(p.Revenue),
			})
		}
		responses.WriteSuccess(w, salesResponse{
			From:         summary.From,
			To:           summary.To,
			OrderCount:   summary.OrderCount,
			UnitsSold:    summary.UnitsSold,
			Subtotal:     dto.Money(summary.Subtotal),
			TaxCollected: dto.Money(summary.TaxCollected),
			Discounts:    dto.Money(summary.Discounts),
			Revenue:      dto.Money(summary.Revenue),
			TopProducts:  top,
		})
	}
}

func isDateOnly(raw string) bool {
	_, err := time.Parse("2006-01-02", raw)
	return err == nil
}
