package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder system.
type Metrics struct {
	// RemindersSentTotal counts reminders by status.
	RemindersSentTotal *prometheus.CounterVec

	ReminderSendDuration prometheus.Histogram

	// ReminderRetries is the total number of retry attempts.
	ReminderRetries prometheus.Counter

	LastRunBookings prometheus.Gauge
}

// NewMetrics creates reminder metrics registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemindersSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_sent_total",
				Help:      "Total number of reminders by status",
			},
			[]string{"status"},
		),
		ReminderSendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reminder_send_duration_seconds",
				Help:      "Time to deliver a reminder including retries",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ReminderRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_retries_total",
				Help:      "Total number of reminder retry attempts",
			},
		),
		LastRunBookings: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reminders_last_run_bookings",
				Help:      "Bookings found by the last reminder run",
			},
		),
	}
}

func (m *Metrics) sent(status string) {
	if m != nil {
		m.RemindersSentTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) retry() {
	if m != nil {
		m.ReminderRetries.Inc()
	}
}
