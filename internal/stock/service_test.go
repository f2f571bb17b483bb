package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/internal/movements"
	"github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
)

func newService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	movementLog, err := movements.NewLogger(movements.NewRepository(conn), nil)
	require.NoError(t, err)
	svc, err := NewService(db.NewFromGorm(conn, nil), NewRepository(conn), movementLog)
	require.NoError(t, err)
	return svc
}

func TestRestockAddsUnitsAndLogsMovement(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "Cheese", "6.00", 2)
	staff := dbtest.SeedUser(t, conn)
	svc := newService(t, conn)

	row, err := svc.Restock(context.Background(), RestockInput{ProductID: product.ID, ActorID: staff.ID, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 12, row.Quantity)

	var movement models.StockMovement
	require.NoError(t, conn.First(&movement, "product_id = ?", product.ID).Error)
	assert.Equal(t, 10, movement.ChangeAmount)
	assert.Equal(t, enums.MovementReasonRestock, movement.Reason)
}

func TestRestockValidation(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newService(t, conn)
	ctx := context.Background()

	_, err := svc.Restock(ctx, RestockInput{ProductID: uuid.New(), Quantity: 0})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Restock(ctx, RestockInput{ProductID: uuid.New(), Quantity: 1, Reason: enums.MovementReasonSale})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Restock(ctx, RestockInput{ProductID: uuid.New(), Quantity: 1})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	assert.Error(t, err)
}
