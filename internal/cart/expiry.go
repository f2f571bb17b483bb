package cart

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
)

// ExpiryRepository purges abandoned cart lines.
type ExpiryRepository struct{}

func NewExpiryRepository() *ExpiryRepository {
	return &ExpiryRepository{}
}

// DeleteStaleBefore removes cart rows added before cutoff.
func (ExpiryRepository) DeleteStaleBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	res := tx.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
