package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simpkl",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simpkl",
			Name:      "availability_checks_total",
			Help:      "Availability checks by resource group and outcome.",
		},
		[]string{"group", "outcome"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simpkl",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, availabilityChecks, bookingTransitions)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncAvailabilityCheck records a check outcome: available, blocked, error.
func IncAvailabilityCheck(group, outcome string) {
	availabilityChecks.WithLabelValues(group, outcome).Inc()
}

// IncBookingTransition records a status transition: pending, approved, rejected.
func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}
