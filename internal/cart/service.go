package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
)

// Summary is the cart as shown to the shopper before checkout.
type Summary struct {
	Lines     []Line
	ItemCount int
	Subtotal  decimal.Decimal
}

// Service exposes read access to a user's cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*Summary, error)
}

type snapshotReader interface {
	Snapshot(ctx context.Context, userID uuid.UUID) ([]Line, error)
}

type service struct {
	repo snapshotReader
}

func NewService(repo snapshotReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	lines, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	summary := &Summary{Lines: lines, Subtotal: decimal.Zero}
	for _, line := range lines {
		summary.ItemCount += line.Quantity
		summary.Subtotal = summary.Subtotal.Add(line.LineTotal())
	}
	summary.Subtotal = summary.Subtotal.Round(2)
	return summary, nil
}
