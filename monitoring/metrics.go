package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchaseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_attempts_total",
			Help: "Purchase attempts by terminal outcome",
		},
		[]string{"event_id", "outcome"},
	)

	inventoryConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_txn_conflicts_total",
			Help: "Inventory transactions aborted after conflict retries",
		},
		[]string{"event_id"},
	)

	ticketsSold = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_sold_total",
			Help: "Tickets sold per event and ticket type",
		},
		[]string{"event_id", "ticket_type_id"},
	)

	confirmationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_confirmation_seconds",
			Help:    "Time from checkout handoff to confirmed payment",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
		[]string{"outcome"},
	)

	liveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_query_subscriptions",
			Help: "Currently open live-query subscriptions",
		},
	)

	likeToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "like_toggles_total",
			Help: "Like toggles by direction",
		},
		[]string{"direction"},
	)
)

// TrackPurchaseOutcome records a terminal purchase state.
func TrackPurchaseOutcome(eventID, outcome string) {
	purchaseOutcomes.WithLabelValues(eventID, outcome).Inc()
}

// TrackInventoryConflict records an aborted inventory transaction.
func TrackInventoryConflict(eventID string) {
	inventoryConflicts.WithLabelValues(eventID).Inc()
}

// TrackTicketsSold records units sold on a successful commit.
func TrackTicketsSold(eventID, ticketTypeID string, qty int) {
	ticketsSold.WithLabelValues(eventID, ticketTypeID).Add(float64(qty))
}

// TrackConfirmationLatency records how long payment confirmation took.
func TrackConfirmationLatency(outcome string, d time.Duration) {
	confirmationLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// TrackSubscription adjusts the live-subscription gauge by delta.
func TrackSubscription(delta int) {
	liveSubscriptions.Add(float64(delta))
}

// TrackLikeToggle records one like flip.
func TrackLikeToggle(liked bool) {
	direction := "unlike"
	if liked {
		direction = "like"
	}
	likeToggles.WithLabelValues(direction).Inc()
}
