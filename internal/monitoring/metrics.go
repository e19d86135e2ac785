// internal/monitoring/metrics.go
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total bookings admitted by the lifecycle engine",
		},
	)

	bookingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Create requests rejected for an overlapping window",
		},
	)

	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking status transitions by target state",
		},
		[]string{"to"},
	)

	paymentsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Payment legs reconciled by leg type and outcome",
		},
		[]string{"leg", "outcome"},
	)

	settlementsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_recorded_total",
			Help: "Completed payments split into ledger transactions",
		},
	)

	webhookDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_seconds",
			Help:    "Gateway webhook processing duration",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)
)

func BookingCreated()                 { bookingsCreated.Inc() }
func BookingConflict()                { bookingConflicts.Inc() }
func BookingTransition(to string)     { bookingTransitions.WithLabelValues(to).Inc() }
func PaymentReconciled(leg, out string) { paymentsReconciled.WithLabelValues(leg, out).Inc() }
func SettlementRecorded()             { settlementsRecorded.Inc() }
func ObserveWebhookDuration(s float64) { webhookDuration.Observe(s) }
