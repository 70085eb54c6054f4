package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the cart and checkout metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// StorefrontMetrics records cart and checkout activity. A nil receiver or a
// value built without a registerer is a no-op.
type StorefrontMetrics struct {
	cartOps          *prometheus.CounterVec
	cartConflicts    *prometheus.CounterVec
	orders           *prometheus.CounterVec
	orderDuration    *prometheus.HistogramVec
	orderNoConflicts prometheus.Counter
	eventPublish     *prometheus.CounterVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	m := &StorefrontMetrics{
		cartOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_operations_total",
			Help: "Cart operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		cartConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_cas_conflicts_total",
			Help: "Optimistic cart writes that lost a race and were retried.",
		}, []string{"op"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_total",
			Help: "Order placement attempts by outcome code.",
		}, []string{"outcome"}),
		orderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_order_duration_seconds",
			Help:    "Duration of order placement in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		orderNoConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_order_number_collisions_total",
			Help: "Generated order numbers that were already taken.",
		}),
		eventPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_event_publish_total",
			Help: "Domain events handed to the publisher by type and outcome.",
		}, []string{"event", "outcome"}),
	}
	reg.MustRegister(m.cartOps, m.cartConflicts, m.orders, m.orderDuration, m.orderNoConflicts, m.eventPublish)
	return m
}

// CartOp counts one cart operation.
func (m *StorefrontMetrics) CartOp(op, outcome string) {
	if m == nil || m.cartOps == nil {
		return
	}
	m.cartOps.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// CartConflict counts one lost compare-and-swap.
func (m *StorefrontMetrics) CartConflict(op string) {
	if m == nil || m.cartConflicts == nil {
		return
	}
	m.cartConflicts.WithLabelValues(normalizeLabel(op)).Inc()
}

// Order records the outcome and latency of an order placement.
func (m *StorefrontMetrics) Order(outcome string, duration time.Duration) {
	if m == nil || m.orders == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.orders.WithLabelValues(outcome).Inc()
	m.orderDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// OrderNumberCollision counts one order number retry.
func (m *StorefrontMetrics) OrderNumberCollision() {
	if m == nil || m.orderNoConflicts == nil {
		return
	}
	m.orderNoConflicts.Inc()
}

// EventPublished counts one publish attempt.
func (m *StorefrontMetrics) EventPublished(event, outcome string) {
	if m == nil || m.eventPublish == nil {
		return
	}
	m.eventPublish.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
