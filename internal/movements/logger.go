package movements

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

const savepointName = "stock_movement"

// Entry describes one stock change to audit.
type Entry struct {
	ProductID    uuid.UUID
	UserID       *uuid.UUID
	ChangeAmount int
	Reason       enums.MovementReason
}

func (e Entry) validate() error {
	if e.ProductID == uuid.Nil {
		return fmt.Errorf("product id is required")
	}
	if e.ChangeAmount == 0 {
		return fmt.Errorf("change amount must be non-zero")
	}
	if !e.Reason.IsValid() {
		return fmt.Errorf("invalid movement reason %q", e.Reason)
	}
	return nil
}

// Logger appends stock movements on a best-effort basis: a failed write is
// logged and discarded without disturbing the surrounding transaction.
type Logger struct {
	repo Repository
	logg *logger.Logger
}

// NewLogger wires the movement logger.
func NewLogger(repo Repository, logg *logger.Logger) (*Logger, error) {
	if repo == nil {
		return nil, fmt.Errorf("movement repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Logger{repo: repo, logg: logg}, nil
}

// LogMovement records entry inside tx and reports whether the row was written.
// The insert runs under a savepoint so a failure only undoes the movement row;
// the caller's transaction stays usable on Postgres, where any failed
// statement would otherwise abort it.
func (l *Logger) LogMovement(ctx context.Context, tx *gorm.DB, entry Entry) bool {
	ctx = l.logg.WithFields(ctx, map[string]any{
		"product_id":    entry.ProductID.String(),
		"change_amount": entry.ChangeAmount,
		"reason":        entry.Reason.String(),
	})

	if err := entry.validate(); err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "error", err.Error()), "stock movement skipped")
		return false
	}
	if tx == nil {
		l.logg.Warn(ctx, "stock movement skipped: transaction required")
		return false
	}

	if err := tx.SavePoint(savepointName).Error; err != nil {
		l.logg.Error(ctx, "stock movement savepoint failed", err)
		return false
	}

	row := &models.StockMovement{
		ProductID:    entry.ProductID,
		UserID:       entry.UserID,
		ChangeAmount: entry.ChangeAmount,
		Reason:       entry.Reason,
	}
	if err := l.repo.WithTx(tx).Create(ctx, row); err != nil {
		l.logg.Error(ctx, "stock movement not recorded", err)
		if rbErr := tx.RollbackTo(savepointName).Error; rbErr != nil {
			l.logg.Error(ctx, "rollback to movement savepoint failed", rbErr)
		}
		return false
	}

	if err := tx.Exec("RELEASE SAVEPOINT " + savepointName).Error; err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "error", err.Error()), "release movement savepoint failed")
	}
	return true
}

// ListByProduct returns the newest movements for a product first.
func (l *Logger) ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	return l.repo.ListByProduct(ctx, productID, pagination.NormalizeLimit(limit))
}
