package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	orderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderCompletedEvent{OrderID: orderID, FinalTotal: "27.50"},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "aggregate_id = ?", orderID).Error)
	resolved, err := Resolve(row.EventType, row.Payload)
	require.NoError(t, err)
	assert.Equal(t, "orders.completed", resolved.Route.RoutingKey)
	assert.Equal(t, 1, resolved.Envelope.Version)
	assert.Equal(t, EnvelopeSource, resolved.Envelope.Source)
	assert.Equal(t, enums.EventOrderCompleted, resolved.Envelope.EventType)
	assert.Equal(t, orderID, resolved.Envelope.AggregateID)
	event := resolved.Payload.(*payloads.OrderCompletedEvent)
	assert.Equal(t, "27.50", event.FinalTotal)

	pending, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventStockLow,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Data:          payloads.StockLowEvent{Quantity: 1},
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, dbtest.Count(t, db, &models.OutboxEvent{}, ""))
}

func TestEmitRequiresTransactionAndKnownTypes(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	assert.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))

	db := dbtest.Open(t)
	err := svc.Emit(context.Background(), db, DomainEvent{EventType: "mystery", AggregateType: enums.AggregateOrder})
	assert.Error(t, err)
}

func TestMarkLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	first := &models.OutboxEvent{EventType: enums.EventStockLow, AggregateType: enums.AggregateProduct, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	second := &models.OutboxEvent{EventType: enums.EventStockLow, AggregateType: enums.AggregateProduct, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, repo.Insert(db, first))
	require.NoError(t, repo.Insert(db, second))

	now := time.Now().UTC()
	retryAt := now.Add(time.Minute)
	require.NoError(t, repo.MarkFailedTx(db, first.ID, errors.New("broker down"), retryAt))
	require.NoError(t, repo.MarkTerminalTx(db, second.ID, errors.New("bad payload")))

	rows, err := repo.FetchPendingTx(ctx, db, 10, 5, now)
	require.NoError(t, err)
	assert.Empty(t, rows, "a failed row waits for its retry time")

	rows, err = repo.FetchPendingTx(ctx, db, 10, 5, retryAt.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	require.NotNil(t, rows[0].NextAttemptAt)

	rows, err = repo.FetchPendingTx(ctx, db, 10, 1, retryAt.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, rows, "rows at the attempt ceiling are skipped")

	require.NoError(t, repo.MarkPublishedTx(db, first.ID))
	pending, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestResolveRejectsBadRows(t *testing.T) {
	_, err := Resolve("mystery", []byte(`{}`))
	var nre NonRetryableError
	assert.ErrorAs(t, err, &nre)

	_, err = Resolve(enums.EventOrderCompleted, []byte(`not json`))
	assert.ErrorAs(t, err, &nre)

	_, err = Resolve(enums.EventOrderCompleted, []byte(`{"version":1,"data":{}}`))
	assert.ErrorAs(t, err, &nre)
	assert.ErrorContains(t, err, "event id")
}
