package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as label values.
const (
	OutcomeCommitted         = "committed"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeStockBusy         = "stock_busy"
	OutcomeRolledBack        = "rolled_back"
)

// CheckoutMetrics records checkout outcomes and latency.
type CheckoutMetrics struct {
	outcomes         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	movementFailures prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_total",
		Help:      "Checkout attempts by terminal outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_seconds",
		Help:      "Checkout latency in seconds by terminal outcome.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"outcome"})
	movementFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_movement_failures_total",
		Help:      "Stock movement rows that could not be written and were skipped.",
	})
	reg.MustRegister(outcomes, duration, movementFailures)
	return &CheckoutMetrics{
		outcomes:         outcomes,
		duration:         duration,
		movementFailures: movementFailures,
	}
}

// Observe counts one checkout and its duration.
func (c *CheckoutMetrics) Observe(outcome string, elapsed time.Duration) {
	if c == nil || c.outcomes == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	c.outcomes.WithLabelValues(outcome).Inc()
	c.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// AddMovementFailures counts skipped movement rows.
func (c *CheckoutMetrics) AddMovementFailures(n int) {
	if c == nil || c.movementFailures == nil || n <= 0 {
		return
	}
	c.movementFailures.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
