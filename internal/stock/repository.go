package stock

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
)

// LowStockItem is a product at or under its reorder threshold.
type LowStockItem struct {
	ProductID     uuid.UUID `gorm:"column:product_id"`
	ProductName   string    `gorm:"column:product_name"`
	Category      string    `gorm:"column:category"`
	Quantity      int       `gorm:"column:quantity"`
	MinStockLevel int       `gorm:"column:min_stock_level"`
}

// Repository is the stock ledger. Every mutation keeps quantity >= 0.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockForUpdate(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Stock, error)
	DecrementIfSufficient(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Increment(ctx context.Context, productID uuid.UUID, qty int) (*models.Stock, error)
	Get(ctx context.Context, productID uuid.UUID) (*models.Stock, error)
	ListLowStock(ctx context.Context) ([]LowStockItem, error)
	ProductsByID(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockForUpdate takes a row lock on the stock row of every given product and
// returns the current quantities keyed by product id. Products without a stock
// row are absent from the result. Rows are locked in ascending id order so two
// checkouts touching the same products cannot deadlock each other.
func (r *repository) LockForUpdate(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Stock, error) {
	out := make(map[uuid.UUID]models.Stock, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	ids := uniqueSorted(productIDs)
	var rows []models.Stock
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id IN ?", ids).
		Order("product_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row
	}
	return out, nil
}

// DecrementIfSufficient subtracts qty only when enough units remain. It reports
// false when no row matched, meaning the product was short or had no stock row.
func (r *repository) DecrementIfSufficient(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, errors.New("decrement quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("product_id = ? AND quantity >= ?", productID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Increment adds qty units, creating the stock row when the product has none.
func (r *repository) Increment(ctx context.Context, productID uuid.UUID, qty int) (*models.Stock, error) {
	if qty <= 0 {
		return nil, errors.New("increment quantity must be positive")
	}
	row := models.Stock{ProductID: productID, Quantity: qty}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("stock.quantity + ?", qty),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, productID)
}

// Get returns the stock row of a product.
func (r *repository) Get(ctx context.Context, productID uuid.UUID) (*models.Stock, error) {
	var row models.Stock
	if err := r.db.WithContext(ctx).First(&row, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

const lowStockQuery = `
SELECT s.product_id,
       p.name AS product_name,
       p.category,
       s.quantity,
       s.min_stock_level
FROM stock s
JOIN products p ON p.id = s.product_id
WHERE s.quantity <= s.min_stock_level
ORDER BY s.quantity ASC, p.name ASC
`

// ListLowStock returns products whose quantity is at or below min_stock_level.
func (r *repository) ListLowStock(ctx context.Context) ([]LowStockItem, error) {
	var items []LowStockItem
	if err := r.db.WithContext(ctx).Raw(lowStockQuery).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ProductsByID loads catalog rows for the given ids.
func (r *repository) ProductsByID(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", uniqueSorted(productIDs)).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
