package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
)

// StockMovement is an append-only audit row. ChangeAmount is negative for
// sales and positive for restocks.
type StockMovement struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	UserID       *uuid.UUID           `gorm:"column:user_id;type:uuid"`
	ChangeAmount int                  `gorm:"column:change_amount;not null"`
	Reason       enums.MovementReason `gorm:"column:reason;type:text;not null"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
