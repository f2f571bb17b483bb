package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/internal/cart"
	"github.com/angelmondragon/grocer-backend/internal/movements"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/internal/stock"
	dbpkg "github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/metrics"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/payloads"
)

const (
	msgEmptyCart         = "Cart is empty. Add items before checking out."
	msgInsufficientStock = "Insufficient stock for one or more items."
	msgStockBusy         = "Stock is being updated by another checkout, please try again."
	msgRolledBack        = "Checkout failed. Transaction rolled back."
)

// errStockChanged means a conditional decrement matched no row even though the
// row was locked and validated. It should never happen.
var errStockChanged = errors.New("stock decrement affected no rows after validation")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type movementLogger interface {
	LogMovement(ctx context.Context, tx *gorm.DB, entry movements.Entry) bool
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type checkoutMetrics interface {
	Observe(outcome string, elapsed time.Duration)
	AddMovementFailures(n int)
}

// Service executes checkout orchestration.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

// Input captures the optional walk-in customer details.
type Input struct {
	CustomerName  *string
	CustomerPhone *string
}

// ResultLine is one sold line as returned to the caller.
type ResultLine struct {
	ProductID       uuid.UUID
	ProductName     string
	Quantity        int
	UnitPriceAtSale decimal.Decimal
	ItemTotal       decimal.Decimal
}

// Result is the committed checkout.
type Result struct {
	OrderID          uuid.UUID
	Order            models.Order
	Lines            []ResultLine
	Totals           Totals
	CartCleared      bool
	MovementsSkipped int
}

// Options carries the pluggable parts of the checkout.
type Options struct {
	Tax         TaxPolicy
	Discount    DiscountPolicy
	LockTimeout time.Duration
	Logger      *logger.Logger
	Metrics     checkoutMetrics
	Now         func() time.Time
}

type service struct {
	tx          txRunner
	cartRepo    cart.Repository
	stockRepo   stock.Repository
	ordersRepo  orders.Repository
	movements   movementLogger
	outbox      outboxPublisher
	tax         TaxPolicy
	discount    DiscountPolicy
	lockTimeout time.Duration
	logg        *logger.Logger
	metrics     checkoutMetrics
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	stockRepo stock.Repository,
	ordersRepo orders.Repository,
	movementLog movementLogger,
	publisher outboxPublisher,
	opts Options,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if stockRepo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if movementLog == nil {
		return nil, fmt.Errorf("movement logger required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if opts.Tax == nil {
		opts.Tax = FlatRateTax{Rate: decimal.Zero}
	}
	if opts.Discount == nil {
		opts.Discount = NoDiscount{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCheckoutMetrics(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		tx:          tx,
		cartRepo:    cartRepo,
		stockRepo:   stockRepo,
		ordersRepo:  ordersRepo,
		movements:   movementLog,
		outbox:      publisher,
		tax:         opts.Tax,
		discount:    opts.Discount,
		lockTimeout: opts.LockTimeout,
		logg:        opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}, nil
}

// run carries the per-checkout state through the transaction.
type run struct {
	ctx    context.Context
	userID uuid.UUID
	state  State
	lines  []cart.Line
	result *Result
}

func (s *service) transition(r *run, next State) {
	r.state = next
	s.logg.Debug(s.logg.WithField(r.ctx, "state", string(next)), "checkout state changed")
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	started := s.now()
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	r := &run{ctx: ctx, userID: userID, state: StateIdle}

	lines, err := s.cartRepo.Snapshot(ctx, userID)
	if err != nil {
		s.finish(r, started, metrics.OutcomeRolledBack, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeRolledBack, err, msgRolledBack)
	}
	r.lines = lines
	s.transition(r, StateLoaded)

	if len(lines) == 0 {
		err := pkgerrors.New(pkgerrors.CodeEmptyCart, msgEmptyCart)
		s.finish(r, started, metrics.OutcomeEmptyCart, err)
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.execute(r, tx, input)
	})
	if err != nil {
		outcome, mapped := classify(err)
		s.finish(r, started, outcome, err)
		return nil, mapped
	}

	s.transition(r, StateCommitted)
	s.finish(r, started, metrics.OutcomeCommitted, nil)
	return r.result, nil
}

func (s *service) execute(r *run, tx *gorm.DB, input Input) error {
	ctx := r.ctx
	cartRepo := s.cartRepo.WithTx(tx)
	stockRepo := s.stockRepo.WithTx(tx)
	ordersRepo := s.ordersRepo.WithTx(tx)

	if err := dbpkg.SetLockTimeout(tx, s.lockTimeout); err != nil {
		return err
	}

	levels, err := stockRepo.LockForUpdate(ctx, productIDs(r.lines))
	if err != nil {
		return err
	}
	s.transition(r, StateLocked)

	if shortfalls := findShortfalls(r.lines, levels); len(shortfalls) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, msgInsufficientStock).WithDetails(shortfalls)
	}
	s.transition(r, StateValidated)

	for _, line := range r.lines {
		ok, err := stockRepo.DecrementIfSufficient(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			s.logg.Error(s.logg.WithField(ctx, "product_id", line.ProductID.String()), "stock invariant violated", errStockChanged)
			return errStockChanged
		}
	}
	s.transition(r, StateDeducted)

	totals := PriceLines(r.userID, r.lines, s.tax, s.discount)
	orderID, err := ordersRepo.CreateOrder(ctx, orders.NewOrder{
		UserID: r.userID,
		Status: enums.OrderStatusCompleted,
		Totals: orders.Totals{
			Subtotal: totals.Subtotal,
			Tax:      totals.Tax,
			Discount: totals.Discount,
		},
		Customer: orders.Customer{
			Name:  trimmed(input.CustomerName),
			Phone: trimmed(input.CustomerPhone),
		},
	})
	if err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	r.ctx = ctx

	items := make([]orders.ItemInput, len(r.lines))
	for i, line := range r.lines {
		items[i] = orders.ItemInput{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			UnitPriceAtSale: line.UnitPrice,
		}
	}
	if _, err := ordersRepo.AddOrderItems(ctx, orderID, items); err != nil {
		return err
	}
	s.transition(r, StateRecorded)

	skipped := 0
	actor := r.userID
	for _, line := range r.lines {
		recorded := s.movements.LogMovement(ctx, tx, movements.Entry{
			ProductID:    line.ProductID,
			UserID:       &actor,
			ChangeAmount: -line.Quantity,
			Reason:       enums.MovementReasonSale,
		})
		if !recorded {
			skipped++
		}
	}
	s.metrics.AddMovementFailures(skipped)
	s.transition(r, StateAudited)

	if _, err := cartRepo.ClearForUser(ctx, r.userID); err != nil {
		return err
	}
	s.transition(r, StateCleared)

	order, err := ordersRepo.FindByIDForUser(ctx, orderID, r.userID)
	if err != nil {
		return err
	}
	result := &Result{
		OrderID:          orderID,
		Order:            *order,
		Lines:            resultLines(r.lines),
		Totals:           totals,
		CartCleared:      true,
		MovementsSkipped: skipped,
	}

	if err := s.emitEvents(ctx, tx, result, levels); err != nil {
		return err
	}
	r.result = result
	return nil
}

func (s *service) emitEvents(ctx context.Context, tx *gorm.DB, result *Result, levels map[uuid.UUID]models.Stock) error {
	actor := &outbox.ActorRef{UserID: result.Order.UserID}
	items := make([]payloads.OrderItemPayload, len(result.Lines))
	for i, line := range result.Lines {
		items[i] = payloads.OrderItemPayload{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			UnitPriceAtSale: line.UnitPriceAtSale.StringFixed(2),
		}
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   result.OrderID,
		Actor:         actor,
		Data: payloads.OrderCompletedEvent{
			OrderID:         result.OrderID,
			UserID:          result.Order.UserID,
			TotalPrice:      result.Totals.Subtotal.StringFixed(2),
			TaxApplied:      result.Totals.Tax.StringFixed(2),
			DiscountApplied: result.Totals.Discount.StringFixed(2),
			FinalTotal:      result.Totals.FinalTotal.StringFixed(2),
			Items:           items,
			CompletedAt:     s.now().UTC(),
		},
	})
	if err != nil {
		return err
	}

	for _, low := range crossedThreshold(result.Lines, levels) {
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockLow,
			AggregateType: enums.AggregateProduct,
			AggregateID:   low.ProductID,
			Actor:         actor,
			Data:          low,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) finish(r *run, started time.Time, outcome string, cause error) {
	elapsed := s.now().Sub(started)
	s.metrics.Observe(outcome, elapsed)

	ctx := s.logg.WithFields(r.ctx, map[string]any{
		"outcome":     outcome,
		"last_state":  string(r.state),
		"duration_ms": elapsed.Milliseconds(),
		"cart_lines":  len(r.lines),
	})
	switch outcome {
	case metrics.OutcomeCommitted:
		s.logg.Info(ctx, "checkout committed")
	case metrics.OutcomeEmptyCart, metrics.OutcomeInsufficientStock, metrics.OutcomeStockBusy:
		r.state = StateRejected
		s.logg.Warn(s.logg.WithField(ctx, "reason", cause.Error()), "checkout rejected")
	default:
		r.state = StateRolledBack
		s.logg.Error(ctx, "checkout rolled back", cause)
	}
}

// classify maps a transaction failure to its outcome label and the error
// returned to callers.
func classify(err error) (string, error) {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeInsufficientStock:
			return metrics.OutcomeInsufficientStock, typed
		case pkgerrors.CodeStockBusy:
			return metrics.OutcomeStockBusy, typed
		}
	}
	if dbpkg.IsLockContention(err) {
		return metrics.OutcomeStockBusy, pkgerrors.Wrap(pkgerrors.CodeStockBusy, err, msgStockBusy)
	}
	return metrics.OutcomeRolledBack, pkgerrors.Wrap(pkgerrors.CodeRolledBack, err, msgRolledBack)
}

func productIDs(lines []cart.Line) []uuid.UUID {
	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	return ids
}

func resultLines(lines []cart.Line) []ResultLine {
	out := make([]ResultLine, len(lines))
	for i, line := range lines {
		price := line.UnitPrice.Round(2)
		out[i] = ResultLine{
			ProductID:       line.ProductID,
			ProductName:     line.ProductName,
			Quantity:        line.Quantity,
			UnitPriceAtSale: price,
			ItemTotal:       price.Mul(decimal.NewFromInt(int64(line.Quantity))),
		}
	}
	return out
}

// crossedThreshold returns the products this sale pushed from above their
// reorder level to at or below it.
func crossedThreshold(lines []ResultLine, levels map[uuid.UUID]models.Stock) []payloads.StockLowEvent {
	sold := make(map[uuid.UUID]int, len(levels))
	order := make([]uuid.UUID, 0, len(levels))
	for _, line := range lines {
		if _, seen := sold[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		sold[line.ProductID] += line.Quantity
	}

	var out []payloads.StockLowEvent
	for _, id := range order {
		level, ok := levels[id]
		if !ok {
			continue
		}
		after := level.Quantity - sold[id]
		if level.Quantity > level.MinStockLevel && after <= level.MinStockLevel {
			out = append(out, payloads.StockLowEvent{
				ProductID:     id,
				Quantity:      after,
				MinStockLevel: level.MinStockLevel,
			})
		}
	}
	return out
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
