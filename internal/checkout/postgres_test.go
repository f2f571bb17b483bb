package checkout

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocer-backend/internal/cart"
	"github.com/angelmondragon/grocer-backend/internal/movements"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/internal/stock"
	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/migrate"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
)

const envTestDSN = "GROCER_TEST_DB_DSN"

func openPostgres(t *testing.T) *db.Client {
	t.Helper()
	dsn := os.Getenv(envTestDSN)
	if dsn == "" {
		t.Skipf("%s not set", envTestDSN)
	}
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{DSN: dsn, MaxOpenConns: 16, MaxIdleConns: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(ctx, sqlDB, "up"))
	return client
}

func TestPostgresConcurrentCheckoutsNeverOversell(t *testing.T) {
	client := openPostgres(t)
	conn := client.DB()

	movementLog, err := movements.NewLogger(movements.NewRepository(conn), nil)
	require.NoError(t, err)
	svc, err := NewService(
		client,
		cart.NewRepository(conn),
		stock.NewRepository(conn),
		orders.NewRepository(conn),
		movementLog,
		outbox.NewService(outbox.NewRepository(conn), nil),
		Options{
			Tax:         FlatRateTax{Rate: decimal.RequireFromString("0.10")},
			LockTimeout: 2 * time.Second,
		},
	)
	require.NoError(t, err)

	const units = 3
	const shoppers = 8
	eggs := dbtest.SeedProduct(t, conn, "Eggs", "3.20", units)
	users := make([]models.User, shoppers)
	for i := range users {
		users[i] = dbtest.SeedUser(t, conn)
		dbtest.AddToCart(t, conn, users[i].ID, eggs.ID, 1)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[pkgerrors.Code]int{}
		sold  int
	)
	for _, user := range users {
		wg.Add(1)
		go func(user models.User) {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), user.ID, Input{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				sold++
				return
			}
			codes[pkgerrors.As(err).Code()]++
		}(user)
	}
	wg.Wait()

	assert.Equal(t, units, sold)
	assert.Equal(t, shoppers-units, codes[pkgerrors.CodeInsufficientStock]+codes[pkgerrors.CodeStockBusy])
	assert.Zero(t, dbtest.StockOf(t, conn, eggs.ID))
	assert.EqualValues(t, units, dbtest.Count(t, conn, &models.StockMovement{}, "product_id = ?", eggs.ID))
}

func TestPostgresOrderItemsAreImmutable(t *testing.T) {
	client := openPostgres(t)
	conn := client.DB()
	user := dbtest.SeedUser(t, conn)
	milk := dbtest.SeedProduct(t, conn, "Milk", "10.00", 2)

	repo := orders.NewRepository(conn)
	orderID, err := repo.CreateOrder(context.Background(), orders.NewOrder{UserID: user.ID, Status: enums.OrderStatusCompleted})
	require.NoError(t, err)
	_, err = repo.AddOrderItems(context.Background(), orderID, []orders.ItemInput{{
		ProductID: milk.ID, Quantity: 1, UnitPriceAtSale: decimal.RequireFromString("10.00"),
	}})
	require.NoError(t, err)

	err = conn.Model(&models.OrderItem{}).Where("order_id = ?", orderID).Update("unit_price_at_sale", decimal.RequireFromString("1.00")).Error
	assert.Error(t, err)
}
