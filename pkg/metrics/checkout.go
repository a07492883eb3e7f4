package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement and payment outcomes.
type CheckoutMetrics struct {
	ordersPlaced       *prometheus.CounterVec
	paymentOutcomes    *prometheus.CounterVec
	checkoutDuration   *prometheus.HistogramVec
	reservationRetries prometheus.Counter
	webhookReplays     prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed, by payment method.",
	}, []string{"method"})
	paymentOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Payment leg outcomes, by method and result.",
	}, []string{"method", "outcome"})
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout placement in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	reservationRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservation_conflicts_total",
		Help: "Stock reservations lost to a concurrent writer.",
	})
	webhookReplays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_webhook_replays_total",
		Help: "Gateway webhook deliveries dropped as duplicates.",
	})
	reg.MustRegister(ordersPlaced, paymentOutcomes, checkoutDuration, reservationRetries, webhookReplays)
	return &CheckoutMetrics{
		ordersPlaced:       ordersPlaced,
		paymentOutcomes:    paymentOutcomes,
		checkoutDuration:   checkoutDuration,
		reservationRetries: reservationRetries,
		webhookReplays:     webhookReplays,
	}
}

// IncOrderPlaced increments the placement counter for the payment method.
func (c *CheckoutMetrics) IncOrderPlaced(method string) {
	if c == nil || c.ordersPlaced == nil {
		return
	}
	c.ordersPlaced.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncPaymentOutcome increments the outcome counter for the method/result pair.
func (c *CheckoutMetrics) IncPaymentOutcome(method, outcome string) {
	if c == nil || c.paymentOutcomes == nil {
		return
	}
	c.paymentOutcomes.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// ObserveCheckoutDuration records how long a placement took.
func (c *CheckoutMetrics) ObserveCheckoutDuration(method string, duration time.Duration) {
	if c == nil || c.checkoutDuration == nil {
		return
	}
	c.checkoutDuration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncReservationConflict counts a reservation attempt lost to a concurrent writer.
func (c *CheckoutMetrics) IncReservationConflict() {
	if c == nil || c.reservationRetries == nil {
		return
	}
	c.reservationRetries.Inc()
}

// IncWebhookReplay counts a duplicate gateway webhook delivery.
func (c *CheckoutMetrics) IncWebhookReplay() {
	if c == nil || c.webhookReplays == nil {
		return
	}
	c.webhookReplays.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
