package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

func strPtr(v string) *string { return &v }

func seedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time, subtotal string, items ...ItemInput) uuid.UUID {
	t.Helper()
	repo := NewRepository(db)
	id, err := repo.CreateOrder(context.Background(), NewOrder{
		UserID: userID,
		Status: enums.OrderStatusCompleted,
		Totals: Totals{Subtotal: decimal.RequireFromString(subtotal), Tax: decimal.RequireFromString("1.00")},
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", id).Update("created_at", createdAt).Error)
	_, err = repo.AddOrderItems(context.Background(), id, items)
	require.NoError(t, err)
	return id
}

func TestCreateOrderAndItems(t *testing.T) {
	db := dbtest.Open(t)
	user := dbtest.SeedUser(t, db)
	milk := dbtest.SeedProduct(t, db, "Milk", "10.00", 5)
	repo := NewRepository(db)
	ctx := context.Background()

	id, err := repo.CreateOrder(ctx, NewOrder{
		UserID:   user.ID,
		Status:   enums.OrderStatusCompleted,
		Totals:   Totals{Subtotal: decimal.RequireFromString("20"), Tax: decimal.RequireFromString("2.005"), Discount: decimal.Zero},
		Customer: Customer{Name: strPtr("Ana"), Phone: strPtr("555-0100")},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	items, err := repo.AddOrderItems(ctx, id, []ItemInput{{ProductID: milk.ID, Quantity: 2, UnitPriceAtSale: milk.Price}})
	require.NoError(t, err)
	require.Len(t, items, 1)

	order, err := repo.FindByIDForUser(ctx, id, user.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
	assert.Equal(t, "20.00", order.TotalPrice.StringFixed(2))
	assert.Equal(t, "2.01", order.TaxApplied.StringFixed(2))
	assert.Equal(t, "Ana", *order.CustomerName)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "20.00", order.Items[0].ItemTotal().StringFixed(2))

	_, err = repo.FindByIDForUser(ctx, id, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderItemsKeepLineOrder(t *testing.T) {
	db := dbtest.Open(t)
	user := dbtest.SeedUser(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	var inputs []ItemInput
	for _, name := range []string{"Eggs", "Apples", "Milk", "Bread", "Cheese"} {
		product := dbtest.SeedProduct(t, db, name, "2.00", 5)
		inputs = append(inputs, ItemInput{ProductID: product.ID, Quantity: 1, UnitPriceAtSale: product.Price})
	}
	id := seedOrder(t, db, user.ID, time.Now(), "10.00", inputs...)

	order, err := repo.FindByIDForUser(ctx, id, user.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, len(inputs))
	for i, item := range order.Items {
		assert.Equal(t, inputs[i].ProductID, item.ProductID)
		assert.Equal(t, i+1, item.LineNumber)
	}

	listed, err := repo.ListByUser(ctx, user.ID, 10, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	for i, item := range listed[0].Items {
		assert.Equal(t, inputs[i].ProductID, item.ProductID)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	_, err := repo.CreateOrder(context.Background(), NewOrder{Status: enums.OrderStatusCompleted})
	assert.Error(t, err)
	_, err = repo.CreateOrder(context.Background(), NewOrder{UserID: uuid.New(), Status: "shipped"})
	assert.Error(t, err)
	_, err = repo.AddOrderItems(context.Background(), uuid.New(), []ItemInput{{ProductID: uuid.New(), Quantity: 0}})
	assert.Error(t, err)
}

func TestListByUserPaginates(t *testing.T) {
	db := dbtest.Open(t)
	user := dbtest.SeedUser(t, db)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oldest := seedOrder(t, db, user.ID, base, "5.00")
	middle := seedOrder(t, db, user.ID, base.Add(time.Hour), "6.00")
	newest := seedOrder(t, db, user.ID, base.Add(2*time.Hour), "7.00")

	first, err := svc.List(context.Background(), user.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, newest, first.Orders[0].ID)
	assert.Equal(t, middle, first.Orders[1].ID)
	assert.NotEmpty(t, first.NextCursor)

	second, err := svc.List(context.Background(), user.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, oldest, second.Orders[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestSalesSummaryUsesSalePrice(t *testing.T) {
	db := dbtest.Open(t)
	user := dbtest.SeedUser(t, db)
	milk := dbtest.SeedProduct(t, db, "Milk", "10.00", 5)
	bread := dbtest.SeedProduct(t, db, "Bread", "5.00", 5)

	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	seedOrder(t, db, user.ID, at, "25.00",
		ItemInput{ProductID: milk.ID, Quantity: 2, UnitPriceAtSale: decimal.RequireFromString("10.00")},
		ItemInput{ProductID: bread.ID, Quantity: 1, UnitPriceAtSale: decimal.RequireFromString("5.00")},
	)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", milk.ID).Update("price", "99.00").Error)

	summary, err := NewRepository(db).SalesSummary(context.Background(), at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.OrderCount)
	assert.EqualValues(t, 3, summary.UnitsSold)
	assert.Equal(t, "25.00", summary.Subtotal.StringFixed(2))
	assert.Equal(t, "1.00", summary.TaxCollected.StringFixed(2))
	assert.Equal(t, "26.00", summary.Revenue.StringFixed(2))
	require.Len(t, summary.TopProducts, 2)
	assert.Equal(t, "Milk", summary.TopProducts[0].ProductName)
	assert.Equal(t, "20.00", summary.TopProducts[0].Revenue.StringFixed(2))
}
