package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskbot",
			Name:      "booking_created_total",
			Help:      "Count of desk bookings created by kind.",
		},
		[]string{"kind"},
	)

	bookingConflict = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskbot",
			Name:      "booking_conflict_total",
			Help:      "Count of rejected bookings by reason.",
		},
		[]string{"reason"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskbot",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by users.",
		},
	)

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskbot",
			Name:      "availability_resolutions_total",
			Help:      "Count of availability resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	updatesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskbot",
			Name:      "telegram_updates_total",
			Help:      "Count of Telegram updates handled by type.",
		},
		[]string{"type"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingConflict, bookingCancelled, resolutions, updatesHandled)
	})
}

func IncBookingCreated(kind string) {
	bookingCreated.WithLabelValues(kind).Inc()
}

func IncBookingConflict(reason string) {
	bookingConflict.WithLabelValues(reason).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

// IncResolution records an availability lookup; outcome is "available", "empty" or "window_closed".
func IncResolution(outcome string) {
	resolutions.WithLabelValues(outcome).Inc()
}

func IncUpdate(kind string) {
	updatesHandled.WithLabelValues(kind).Inc()
}
