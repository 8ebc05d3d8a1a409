package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monte",
			Name:      "booking_attempts_total",
			Help:      "Count of booking attempts by result.",
		},
		[]string{"result"},
	)

	reservationsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "monte",
			Name:      "reservations_cancelled_total",
			Help:      "Count of reservations cancelled by an admin.",
		},
	)

	dailyResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monte",
			Name:      "daily_resets_total",
			Help:      "Count of schedule clears by kind (rollover, admin).",
		},
		[]string{"kind"},
	)

	reservedSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "monte",
			Name:      "reserved_slots",
			Help:      "Number of slots reserved as of the last authoritative read.",
		},
	)

	storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "monte",
			Name:      "store_op_duration_seconds",
			Help:      "Duration of reservation store operations.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"op"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monte",
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingAttempts, reservationsCancelled, dailyResets, reservedSlots, storeOpDuration, httpRequests)
	})
}

func IncBookingAttempt(result string) {
	bookingAttempts.WithLabelValues(result).Inc()
}

func IncReservationCancelled() {
	reservationsCancelled.Inc()
}

func IncDailyReset(kind string) {
	dailyResets.WithLabelValues(kind).Inc()
}

func SetReservedSlots(n int) {
	reservedSlots.Set(float64(n))
}

// ObserveStoreOp records time since start; use with defer.
func ObserveStoreOp(op string, start time.Time) {
	storeOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
