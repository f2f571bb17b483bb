package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

// Totals are the monetary columns of an order header.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
}

// Customer carries the optional walk-in customer details.
type Customer struct {
	Name  *string
	Phone *string
}

// NewOrder is the header written when a checkout commits.
type NewOrder struct {
	UserID   uuid.UUID
	Status   enums.OrderStatus
	Totals   Totals
	Customer Customer
}

// ItemInput is one sold line with the price captured at checkout.
type ItemInput struct {
	ProductID       uuid.UUID
	Quantity        int
	UnitPriceAtSale decimal.Decimal
}

// Repository records orders and serves the read side.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order NewOrder) (uuid.UUID, error)
	AddOrderItems(ctx context.Context, orderID uuid.UUID, items []ItemInput) ([]models.OrderItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	SalesSummary(ctx context.Context, from, to time.Time) (*SalesSummary, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func (r *repository) CreateOrder(ctx context.Context, order NewOrder) (uuid.UUID, error) {
	if order.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("user id is required")
	}
	if !order.Status.IsValid() {
		return uuid.Nil, fmt.Errorf("invalid order status %q", order.Status)
	}
	row := &models.Order{
		UserID:          order.UserID,
		Status:          order.Status,
		TotalPrice:      money(order.Totals.Subtotal),
		TaxApplied:      money(order.Totals.Tax),
		DiscountApplied: money(order.Totals.Discount),
		CustomerName:    order.Customer.Name,
		CustomerPhone:   order.Customer.Phone,
	}
	if err := r.db.WithContext(ctx).Omit("Items").Create(row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

func (r *repository) AddOrderItems(ctx context.Context, orderID uuid.UUID, items []ItemInput) ([]models.OrderItem, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if len(items) == 0 {
		return []models.OrderItem{}, nil
	}
	rows := make([]models.OrderItem, 0, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("order item quantity must be positive")
		}
		rows = append(rows, models.OrderItem{
			OrderID:         orderID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPriceAtSale: money(item.UnitPriceAtSale),
			LineNumber:      i + 1,
		})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		Where("user_id = ?", userID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Order
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
