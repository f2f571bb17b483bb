package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/api/controllers/dto"
	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/api/responses"
	"github.com/angelmondragon/grocer-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/grocer-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

const (
	maxCustomerNameLen  = 120
	maxCustomerPhoneLen = 20
)

// Checkout converts the caller's cart into a completed order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), userID, checkoutsvc.Input{
			CustomerName:  validators.OptionalString(payload.CustomerName, maxCustomerNameLen),
			CustomerPhone: validators.OptionalString(payload.CustomerPhone, maxCustomerPhoneLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutRequest struct {
	CustomerName  *string `json:"customer_name,omitempty" validate:"omitempty,max=120"`
	CustomerPhone *string `json:"customer_phone,omitempty" validate:"omitempty,phone"`
}

type checkoutResponse struct {
	Success         bool                   `json:"success"`
	OrderID         uuid.UUID              `json:"order_id"`
	Order           dto.Order              `json:"order"`
	Items           []checkoutItemResponse `json:"items"`
	TotalPrice      string                 `json:"total_price"`
	TaxApplied      string                 `json:"tax_applied"`
	DiscountApplied string                 `json:"discount_applied"`
	FinalTotal      string                 `json:"final_total"`
	CartCleared     bool                   `json:"cart_cleared"`
}

type checkoutItemResponse struct {
	ProductID       uuid.UUID `json:"product_id"`
	ProductName     string    `json:"product_name"`
	Quantity        int       `json:"quantity"`
	UnitPriceAtSale string    `json:"unit_price_at_sale"`
	ItemTotal       string    `json:"item_total"`
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	items := make([]checkoutItemResponse, 0, len(result.Lines))
	for _, line := range result.Lines {
		items = append(items, checkoutItemResponse{
			ProductID:       line.ProductID,
			ProductName:     line.ProductName,
			Quantity:        line.Quantity,
			UnitPriceAtSale: dto.Money(line.UnitPriceAtSale),
			ItemTotal:       dto.Money(line.ItemTotal),
		})
	}
	return checkoutResponse{
		Success:         true,
		OrderID:         result.OrderID,
		Order:           dto.NewOrder(result.Order, false),
		Items:           items,
		TotalPrice:      dto.Money(result.Totals.Subtotal),
		TaxApplied:      dto.Money(result.Totals.Tax),
		DiscountApplied: dto.Money(result.Totals.Discount),
		FinalTotal:      dto.Money(result.Totals.FinalTotal),
		CartCleared:     result.CartCleared,
	}
}
