package products

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/api/responses"
	"github.com/angelmondragon/grocer-backend/api/validators"
	"github.com/angelmondragon/grocer-backend/internal/stock"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

type movementLister interface {
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error)
}

type movementResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"product_id"`
	UserID       *uuid.UUID `json:"user_id"`
	ChangeAmount int        `json:"change_amount"`
	Reason       string     `json:"reason"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Movements returns the newest stock movements for a product.
func Movements(lister movementLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lister == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement log unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := lister.ListByProduct(r.Context(), productID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list movements"))
			return
		}

		out := make([]movementResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, movementResponse{
				ID:           row.ID,
				ProductID:    row.ProductID,
				UserID:       row.UserID,
				ChangeAmount: row.ChangeAmount,
				Reason:       string(row.Reason),
				CreatedAt:    row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"movements": out})
	}
}

type restockRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0,max=100000"`
	Reason   string `json:"reason,omitempty" validate:"omitempty,oneof=Restock Adjustment Return"`
}

type stockResponse struct {
	ProductID     uuid.UUID `json:"product_id"`
	Quantity      int       `json:"quantity"`
	MinStockLevel int       `json:"min_stock_level"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Restock adds units to a product's stock and records the movement.
func Restock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		actorID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Restock(r.Context(), stock.RestockInput{
			ProductID: productID,
			ActorID:   actorID,
			Quantity:  payload.Quantity,
			Reason:    enums.MovementReason(payload.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stockResponse{
			ProductID:     row.ProductID,
			Quantity:      row.Quantity,
			MinStockLevel: row.MinStockLevel,
			UpdatedAt:     row.UpdatedAt,
		})
	}
}
