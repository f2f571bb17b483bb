package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
)

// Line is one cart row joined with the product's current catalog data and the
// live stock count. Available is 0 when the product has no stock row.
type Line struct {
	CartItemID  uuid.UUID       `gorm:"column:cart_item_id"`
	ProductID   uuid.UUID       `gorm:"column:product_id"`
	ProductName string          `gorm:"column:product_name"`
	Category    string          `gorm:"column:category"`
	ImageURL    *string         `gorm:"column:image_url"`
	Quantity    int             `gorm:"column:quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price"`
	Available   int             `gorm:"column:available"`
	AddedAt     time.Time       `gorm:"column:added_at"`
}

// LineTotal is quantity times the current unit price.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Repository reads and clears cart rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Snapshot(ctx context.Context, userID uuid.UUID) ([]Line, error)
	ClearForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

const snapshotQuery = `
SELECT c.id AS cart_item_id,
       c.product_id,
       p.name AS product_name,
       p.category,
       p.image_url,
       c.quantity,
       p.price AS unit_price,
       COALESCE(s.quantity, 0) AS available,
       c.created_at AS added_at
FROM cart c
JOIN products p ON p.id = c.product_id
LEFT JOIN stock s ON s.product_id = c.product_id
WHERE c.user_id = ?
ORDER BY c.seq ASC
`

// Snapshot returns the user's cart in insertion order. An empty cart yields an
// empty, non-nil slice.
func (r *repository) Snapshot(ctx context.Context, userID uuid.UUID) ([]Line, error) {
	lines := []Line{}
	if err := r.db.WithContext(ctx).Raw(snapshotQuery, userID).Scan(&lines).Error; err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []Line{}
	}
	return lines, nil
}

// ClearForUser deletes every cart row of the user and returns how many went.
func (r *repository) ClearForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
