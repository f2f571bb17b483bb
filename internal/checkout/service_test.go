package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/internal/cart"
	"github.com/angelmondragon/grocer-backend/internal/movements"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/internal/stock"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
)

type stubTxRunner struct {
	calls     int
	committed bool
}

func (s *stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	s.calls++
	if err := fn(nil); err != nil {
		return err
	}
	s.committed = true
	return nil
}

type stubCartRepo struct {
	lines       []cart.Line
	snapshotErr error
	clearErr    error
	cleared     bool
}

func (s *stubCartRepo) WithTx(*gorm.DB) cart.Repository { return s }

func (s *stubCartRepo) Snapshot(context.Context, uuid.UUID) ([]cart.Line, error) {
	return s.lines, s.snapshotErr
}

func (s *stubCartRepo) ClearForUser(context.Context, uuid.UUID) (int64, error) {
	if s.clearErr != nil {
		return 0, s.clearErr
	}
	s.cleared = true
	return int64(len(s.lines)), nil
}

type stubStockRepo struct {
	stock.Repository
	levels        map[uuid.UUID]models.Stock
	lockErr       error
	failDecrement uuid.UUID
	decremented   map[uuid.UUID]int
	lockedIDs     []uuid.UUID
}

func (s *stubStockRepo) WithTx(*gorm.DB) stock.Repository { return s }

func (s *stubStockRepo) LockForUpdate(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Stock, error) {
	s.lockedIDs = ids
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	return s.levels, nil
}

func (s *stubStockRepo) DecrementIfSufficient(_ context.Context, productID uuid.UUID, qty int) (bool, error) {
	if productID == s.failDecrement {
		return false, nil
	}
	if s.decremented == nil {
		s.decremented = map[uuid.UUID]int{}
	}
	s.decremented[productID] += qty
	return true, nil
}

type stubOrdersRepo struct {
	orders.Repository
	created   *orders.NewOrder
	items     []orders.ItemInput
	createErr error
	orderID   uuid.UUID
}

func (s *stubOrdersRepo) WithTx(*gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) CreateOrder(_ context.Context, order orders.NewOrder) (uuid.UUID, error) {
	if s.createErr != nil {
		return uuid.Nil, s.createErr
	}
	s.created = &order
	s.orderID = uuid.New()
	return s.orderID, nil
}

func (s *stubOrdersRepo) AddOrderItems(_ context.Context, orderID uuid.UUID, items []orders.ItemInput) ([]models.OrderItem, error) {
	s.items = items
	return nil, nil
}

func (s *stubOrdersRepo) FindByIDForUser(_ context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	return &models.Order{
		ID:              orderID,
		UserID:          userID,
		Status:          s.created.Status,
		TotalPrice:      s.created.Totals.Subtotal,
		TaxApplied:      s.created.Totals.Tax,
		DiscountApplied: s.created.Totals.Discount,
	}, nil
}

type stubMovements struct {
	fail    bool
	entries []movements.Entry
}

func (s *stubMovements) LogMovement(_ context.Context, _ *gorm.DB, entry movements.Entry) bool {
	s.entries = append(s.entries, entry)
	return !s.fail
}

type stubOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type fixture struct {
	tx        *stubTxRunner
	cart      *stubCartRepo
	stock     *stubStockRepo
	orders    *stubOrdersRepo
	movements *stubMovements
	outbox    *stubOutbox
	milk      cart.Line
	bread     cart.Line
}

func newFixture() *fixture {
	milk := cart.Line{ProductID: uuid.New(), ProductName: "Milk", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")}
	bread := cart.Line{ProductID: uuid.New(), ProductName: "Bread", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")}
	return &fixture{
		tx:   &stubTxRunner{},
		cart: &stubCartRepo{lines: []cart.Line{milk, bread}},
		stock: &stubStockRepo{levels: map[uuid.UUID]models.Stock{
			milk.ProductID:  {ProductID: milk.ProductID, Quantity: 5},
			bread.ProductID: {ProductID: bread.ProductID, Quantity: 5},
		}},
		orders:    &stubOrdersRepo{},
		movements: &stubMovements{},
		outbox:    &stubOutbox{},
		milk:      milk,
		bread:     bread,
	}
}

func (f *fixture) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(f.tx, f.cart, f.stock, f.orders, f.movements, f.outbox, Options{
		Tax: FlatRateTax{Rate: decimal.RequireFromString("0.10")},
	})
	require.NoError(t, err)
	return svc
}

func TestCheckoutCommitsWithTotals(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	name := "  Ana  "

	result, err := f.service(t).Checkout(context.Background(), userID, Input{CustomerName: &name})
	require.NoError(t, err)

	assert.Equal(t, "25.00", result.Totals.Subtotal.StringFixed(2))
	assert.Equal(t, "2.50", result.Totals.Tax.StringFixed(2))
	assert.Equal(t, "0.00", result.Totals.Discount.StringFixed(2))
	assert.Equal(t, "27.50", result.Totals.FinalTotal.StringFixed(2))
	assert.True(t, result.CartCleared)
	assert.Equal(t, f.orders.orderID, result.OrderID)

	assert.True(t, f.tx.committed)
	assert.Equal(t, enums.OrderStatusCompleted, f.orders.created.Status)
	require.NotNil(t, f.orders.created.Customer.Name)
	assert.Equal(t, "Ana", *f.orders.created.Customer.Name)
	assert.Nil(t, f.orders.created.Customer.Phone)
	require.Len(t, f.orders.items, 2)
	assert.Equal(t, "10.00", f.orders.items[0].UnitPriceAtSale.StringFixed(2))

	assert.Equal(t, 2, f.stock.decremented[f.milk.ProductID])
	assert.Equal(t, 1, f.stock.decremented[f.bread.ProductID])
	require.Len(t, f.movements.entries, 2)
	assert.Equal(t, -2, f.movements.entries[0].ChangeAmount)
	assert.Equal(t, enums.MovementReasonSale, f.movements.entries[0].Reason)
	assert.True(t, f.cart.cleared)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventOrderCompleted, f.outbox.events[0].EventType)
	assert.Equal(t, result.OrderID, f.outbox.events[0].AggregateID)
}

func TestCheckoutEmptyCartOpensNoTransaction(t *testing.T) {
	f := newFixture()
	f.cart.lines = []cart.Line{}

	_, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeEmptyCart, typed.Code())
	assert.Equal(t, "Cart is empty. Add items before checking out.", typed.Message())
	assert.Zero(t, f.tx.calls)
}

func TestCheckoutReportsEveryShortfallInCartOrder(t *testing.T) {
	f := newFixture()
	missing := cart.Line{ProductID: uuid.New(), ProductName: "Saffron", Quantity: 1, UnitPrice: decimal.RequireFromString("9.99")}
	f.cart.lines = []cart.Line{f.bread, f.milk, missing}
	f.stock.levels[f.milk.ProductID] = models.Stock{ProductID: f.milk.ProductID, Quantity: 1}

	_, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	shortfalls, ok := typed.Details().([]Shortfall)
	require.True(t, ok)
	require.Len(t, shortfalls, 2)
	assert.Equal(t, Shortfall{ProductID: f.milk.ProductID, ProductName: "Milk", Requested: 2, Available: 1}, shortfalls[0])
	assert.Equal(t, Shortfall{ProductID: missing.ProductID, ProductName: "Saffron", Requested: 1, Available: 0}, shortfalls[1])

	assert.False(t, f.tx.committed)
	assert.Empty(t, f.stock.decremented)
	assert.Nil(t, f.orders.created)
	assert.False(t, f.cart.cleared)
}

func TestCheckoutSameProductOnSeveralLinesSharesStock(t *testing.T) {
	f := newFixture()
	again := f.milk
	again.Quantity = 4
	f.cart.lines = []cart.Line{f.milk, again}

	_, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	shortfalls := typed.Details().([]Shortfall)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, 4, shortfalls[0].Requested)
	assert.Equal(t, 3, shortfalls[0].Available)
}

func TestCheckoutDecrementMissIsFatal(t *testing.T) {
	f := newFixture()
	f.stock.failDecrement = f.bread.ProductID

	_, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeRolledBack, typed.Code())
	assert.ErrorIs(t, err, errStockChanged)
	assert.False(t, f.tx.committed)
	assert.Nil(t, f.orders.created)
}

func TestCheckoutMovementFailureStillCommits(t *testing.T) {
	f := newFixture()
	f.movements.fail = true

	result, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
	require.NoError(t, err)
	assert.True(t, f.tx.committed)
	assert.Equal(t, 2, result.MovementsSkipped)
	assert.True(t, f.cart.cleared)
}

func TestCheckoutLockTimeoutIsRetryable(t *testing.T) {
	f := newFixture()
	f.stock.lockErr = &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}

	_, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStockBusy, typed.Code())
	assert.True(t, pkgerrors.IsRetryable(err))
}

func TestCheckoutInfrastructureFailuresRollBack(t *testing.T) {
	cases := map[string]func(f *fixture){
		"order insert": func(f *fixture) { f.orders.createErr = errors.New("insert failed") },
		"cart clear":   func(f *fixture) { f.cart.clearErr = errors.New("delete failed") },
		"outbox":       func(f *fixture) { f.outbox.err = errors.New("outbox failed") },
		"lock":         func(f *fixture) { f.stock.lockErr = errors.New("connection reset") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			mutate(f)
			_, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeRolledBack, typed.Code())
			assert.Equal(t, "Checkout failed. Transaction rolled back.", typed.Message())
			assert.False(t, f.tx.committed)
		})
	}
}

func TestCheckoutSnapshotFailure(t *testing.T) {
	f := newFixture()
	f.cart.snapshotErr = errors.New("db down")

	_, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
	typed := pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeRolledBack, typed.Code())
	assert.Equal(t, "Checkout failed. Transaction rolled back.", typed.Message())
	assert.Zero(t, f.tx.calls)
}

func TestCheckoutEmitsStockLowWhenThresholdCrossed(t *testing.T) {
	f := newFixture()
	f.stock.levels[f.milk.ProductID] = models.Stock{ProductID: f.milk.ProductID, Quantity: 4, MinStockLevel: 2}
	f.stock.levels[f.bread.ProductID] = models.Stock{ProductID: f.bread.ProductID, Quantity: 1, MinStockLevel: 3}

	_, err := f.service(t).Checkout(context.Background(), uuid.New(), Input{})
	require.NoError(t, err)
	require.Len(t, f.outbox.events, 2)
	assert.Equal(t, enums.EventStockLow, f.outbox.events[1].EventType)
	assert.Equal(t, f.milk.ProductID, f.outbox.events[1].AggregateID)
}

func TestCheckoutRequiresUser(t *testing.T) {
	f := newFixture()
	_, err := f.service(t).Checkout(context.Background(), uuid.Nil, Input{})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	f := newFixture()
	_, err := NewService(nil, f.cart, f.stock, f.orders, f.movements, f.outbox, Options{})
	assert.Error(t, err)
	_, err = NewService(f.tx, f.cart, f.stock, f.orders, nil, f.outbox, Options{})
	assert.Error(t, err)
}

func TestFinishRecordsOutcome(t *testing.T) {
	rec := &recordingMetrics{}
	f := newFixture()
	svc, err := NewService(f.tx, f.cart, f.stock, f.orders, f.movements, f.outbox, Options{Metrics: rec})
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), uuid.New(), Input{})
	require.NoError(t, err)
	f.cart.lines = nil
	_, _ = svc.Checkout(context.Background(), uuid.New(), Input{})

	assert.Equal(t, []string{"committed", "empty_cart"}, rec.outcomes)
}

type recordingMetrics struct {
	outcomes []string
}

func (r *recordingMetrics) Observe(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) AddMovementFailures(int) {}
