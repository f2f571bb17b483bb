package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/grocer-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/grocer-backend/api/controllers/orders"
	productcontrollers "github.com/angelmondragon/grocer-backend/api/controllers/products"
	reportcontrollers "github.com/angelmondragon/grocer-backend/api/controllers/reports"
	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/grocer-backend/internal/checkout"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/internal/stock"
	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/grocer-backend/pkg/redis"
)

// RedisStore is the redis surface the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
	Ping(ctx context.Context) error
}

type movementLister interface {
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error)
}

// Params carries the router dependencies. Redis may be nil, which disables
// idempotency replay and rate limiting.
type Params struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          RedisStore
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Checkout  checkoutsvc.Service
	Cart      cart.Service
	Orders    orders.Service
	Stock     stock.Service
	Movements movementLister
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		p.HTTPMetrics.Middleware,
	)

	readiness := map[string]controllers.Pinger{"db": p.DB, "redis": p.Redis}
	idempotent := middleware.Idempotency(p.Redis, logg)
	checkoutLimiter := middleware.RateLimit(
		middleware.NewRateLimitPolicy("checkout", cfg.Checkout.RateLimitWindow, cfg.Checkout.RateLimitAttempts),
		p.Redis,
		logg,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if p.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", p.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/cart", cartcontrollers.CartFetch(p.Cart, logg))
		// Replays and missing-key rejections are answered before the limiter
		// counts an attempt.
		r.With(idempotent, checkoutLimiter).Post("/checkout", controllers.Checkout(p.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleStaff, enums.UserRoleAdmin))

			r.Route("/reports", func(r chi.Router) {
				r.Get("/low-stock", reportcontrollers.LowStock(p.Stock, logg))
				r.Get("/sales", reportcontrollers.Sales(p.Orders, logg))
			})
			r.Route("/products/{productId}", func(r chi.Router) {
				r.Get("/movements", productcontrollers.Movements(p.Movements, logg))
				r.With(idempotent).Post("/restock", productcontrollers.Restock(p.Stock, logg))
			})
		})
	})

	return r
}
