package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains the Prometheus metrics of push delivery.
type NotificationMetrics struct {
	DeliveriesTotal  *prometheus.CounterVec   // by provider, status
	DeliveryDuration *prometheus.HistogramVec // by provider
	FilteredTotal    *prometheus.CounterVec   // by reason
	CircuitState     *prometheus.GaugeVec     // by provider; 0 closed, 1 half-open, 2 open
}

// NewNotificationMetrics creates and registers the notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldwatch_notification_deliveries_total",
			Help: "Total number of push delivery attempts by provider and status",
		}, []string{"provider", "status"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldwatch_notification_delivery_duration_seconds",
			Help:    "Time taken for push delivery by provider",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}, []string{"provider"}),
		FilteredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldwatch_notification_filtered_total",
			Help: "Total number of alert events not pushed by reason",
		}, []string{"reason"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fieldwatch_notification_circuit_state",
			Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		}, []string{"provider"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// RecordDelivery records one delivery attempt.
func (m *NotificationMetrics) RecordDelivery(provider, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(provider, status).Inc()
	m.DeliveryDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordFiltered counts an event that was not pushed.
func (m *NotificationMetrics) RecordFiltered(reason string) {
	if m == nil {
		return
	}
	m.FilteredTotal.WithLabelValues(reason).Inc()
}

// UpdateCircuitBreakerState records the breaker state of provider.
func (m *NotificationMetrics) UpdateCircuitBreakerState(provider string, state int) {
	if m == nil {
		return
	}
	m.CircuitState.WithLabelValues(provider).Set(float64(state))
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	m.FilteredTotal.Describe(ch)
	m.CircuitState.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	m.FilteredTotal.Collect(ch)
	m.CircuitState.Collect(ch)
}
