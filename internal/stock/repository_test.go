package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
)

func TestLockForUpdateReturnsExistingRows(t *testing.T) {
	db := dbtest.Open(t)
	apple := dbtest.SeedProduct(t, db, "Apple", "0.50", 7)
	pear := dbtest.SeedProduct(t, db, "Pear", "0.75", 0)
	missing := uuid.New()
	repo := NewRepository(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.WithTx(tx).LockForUpdate(context.Background(), []uuid.UUID{pear.ID, apple.ID, missing, apple.ID})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
		assert.Equal(t, 7, rows[apple.ID].Quantity)
		assert.Equal(t, 0, rows[pear.ID].Quantity)
		_, ok := rows[missing]
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	empty, err := repo.LockForUpdate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecrementIfSufficient(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "Rice", "12.00", 3)
	repo := NewRepository(db)
	ctx := context.Background()

	ok, err := repo.DecrementIfSufficient(ctx, product.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, dbtest.StockOf(t, db, product.ID))

	ok, err = repo.DecrementIfSufficient(ctx, product.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "must not go below zero")
	assert.Equal(t, 1, dbtest.StockOf(t, db, product.ID))

	ok, err = repo.DecrementIfSufficient(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok, "missing row affects nothing")

	_, err = repo.DecrementIfSufficient(ctx, product.ID, 0)
	assert.Error(t, err)
}

func TestIncrementCreatesOrAdds(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.SeedProduct(t, db, "Beans", "1.10", 2)
	repo := NewRepository(db)
	ctx := context.Background()

	row, err := repo.Increment(ctx, product.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, row.Quantity)

	fresh := models.Product{Name: "Lentils", Category: "dry", Price: product.Price}
	require.NoError(t, db.Create(&fresh).Error)
	row, err = repo.Increment(ctx, fresh.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, row.Quantity)
}

func TestListLowStock(t *testing.T) {
	db := dbtest.Open(t)
	low := dbtest.SeedProduct(t, db, "Salt", "0.99", 1)
	dbtest.SeedProduct(t, db, "Sugar", "1.99", 50)
	require.NoError(t, db.Model(&models.Stock{}).Where("product_id = ?", low.ID).Update("min_stock_level", 5).Error)

	items, err := NewRepository(db).ListLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ProductID)
	assert.Equal(t, "Salt", items[0].ProductName)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 5, items[0].MinStockLevel)
}
