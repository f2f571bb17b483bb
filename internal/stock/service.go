package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/internal/movements"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type movementLogger interface {
	LogMovement(ctx context.Context, tx *gorm.DB, entry movements.Entry) bool
}

// Service exposes the staff-facing stock operations.
type Service interface {
	Restock(ctx context.Context, input RestockInput) (*models.Stock, error)
	LowStock(ctx context.Context) ([]LowStockItem, error)
}

// RestockInput adds units to a product's stock.
type RestockInput struct {
	ProductID uuid.UUID
	ActorID   uuid.UUID
	Quantity  int
	Reason    enums.MovementReason
}

type service struct {
	tx        txRunner
	repo      Repository
	movements movementLogger
}

// NewService wires the stock service.
func NewService(tx txRunner, repo Repository, movementLog movementLogger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if movementLog == nil {
		return nil, fmt.Errorf("movement logger required")
	}
	return &service{tx: tx, repo: repo, movements: movementLog}, nil
}

func (s *service) Restock(ctx context.Context, input RestockInput) (*models.Stock, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Reason == "" {
		input.Reason = enums.MovementReasonRestock
	}
	if input.Reason == enums.MovementReasonSale || !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reason %q cannot add stock", input.Reason))
	}

	var out *models.Stock
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products, err := repo.ProductsByID(ctx, []uuid.UUID{input.ProductID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if _, ok := products[input.ProductID]; !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		row, err := repo.Increment(ctx, input.ProductID, input.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment stock")
		}

		entry := movements.Entry{
			ProductID:    input.ProductID,
			ChangeAmount: input.Quantity,
			Reason:       input.Reason,
		}
		if input.ActorID != uuid.Nil {
			actor := input.ActorID
			entry.UserID = &actor
		}
		s.movements.LogMovement(ctx, tx, entry)
		out = row
		return nil
	})
	if err != nil {
		var typed *pkgerrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restock failed")
	}
	return out, nil
}

func (s *service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	items, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock")
	}
	if items == nil {
		items = []LowStockItem{}
	}
	return items, nil
}
