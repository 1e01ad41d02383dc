package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "riad"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_conflicts_total",
			Help:      "Reservation attempts rejected because the room was taken.",
		},
	)

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Reservation status transitions by target status.",
		},
		[]string{"status"},
	)

	paymentEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_entries_total",
			Help:      "Payment ledger entries by kind.",
		},
		[]string{"kind"},
	)

	notificationsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Staff notifications dropped after retries or queue overflow.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservationConflicts, reservationTransitions,
			paymentEntries, notificationsFailed)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncConflict() {
	reservationConflicts.Inc()
}

func IncTransition(status string) {
	reservationTransitions.WithLabelValues(status).Inc()
}

func IncPaymentEntry(kind string) {
	paymentEntries.WithLabelValues(kind).Inc()
}

func IncNotificationFailed() {
	notificationsFailed.Inc()
}
