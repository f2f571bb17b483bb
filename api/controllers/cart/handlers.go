package cart

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/api/controllers/dto"
	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/api/responses"
	cartsvc "github.com/angelmondragon/grocer-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

// CartFetch returns the caller's cart priced at current catalog prices.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(summary))
	}
}

type cartResponse struct {
	Items     []cartItemResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	Subtotal  string             `json:"subtotal"`
}

type cartItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Category    string    `json:"category"`
	ImageURL    *string   `json:"image_url"`
	Quantity    int       `json:"quantity"`
	Available   int       `json:"available"`
	UnitPrice   string    `json:"unit_price"`
	LineTotal   string    `json:"line_total"`
	AddedAt     time.Time `json:"added_at"`
}

func newCartResponse(summary *cartsvc.Summary) cartResponse {
	items := make([]cartItemResponse, 0, len(summary.Lines))
	for _, line := range summary.Lines {
		items = append(items, cartItemResponse{
			ID:          line.CartItemID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Category:    line.Category,
			ImageURL:    line.ImageURL,
			Quantity:    line.Quantity,
			Available:   line.Available,
			UnitPrice:   dto.Money(line.UnitPrice),
			LineTotal:   dto.Money(line.LineTotal()),
			AddedAt:     line.AddedAt,
		})
	}
	return cartResponse{
		Items:     items,
		ItemCount: summary.ItemCount,
		Subtotal:  dto.Money(summary.Subtotal),
	}
}
