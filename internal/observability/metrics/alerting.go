package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Alert transition labels.
const (
	TransitionOpened   = "opened"
	TransitionResolved = "resolved"
)

// AlertingMetrics contains the Prometheus metrics of the alert lifecycle.
type AlertingMetrics struct {
	TransitionsTotal   *prometheus.CounterVec   // by transition, condition, severity
	OpenAlerts         *prometheus.GaugeVec     // by condition
	RetriesTotal       *prometheus.CounterVec   // by operation, reason
	FailuresTotal      *prometheus.CounterVec   // by operation, category
	StaleReadingsTotal prometheus.Counter       // out-of-order readings that may not resolve
	OperationDuration  *prometheus.HistogramVec // by operation

	collectors []prometheus.Collector
}

// NewAlertingMetrics creates and registers the alerting metrics.
func NewAlertingMetrics(registry *prometheus.Registry) (*AlertingMetrics, error) {
	m := &AlertingMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register alerting metrics: %w", err)
	}
	return m, nil
}

func (m *AlertingMetrics) initMetrics() {
	m.TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldwatch_alert_transitions_total",
		Help: "Total number of alert transitions by kind, condition and severity",
	}, []string{"transition", "condition", "severity"})

	m.OpenAlerts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fieldwatch_alerts_open",
		Help: "Number of currently open alerts by condition",
	}, []string{"condition"})

	m.RetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldwatch_alert_retries_total",
		Help: "Total number of retried alert operations by operation and reason",
	}, []string{"operation", "reason"})

	m.FailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldwatch_alert_failures_total",
		Help: "Total number of failed alert operations by operation and error category",
	}, []string{"operation", "category"})

	m.StaleReadingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldwatch_alert_stale_readings_total",
		Help: "Total number of out-of-order readings evaluated without resolving alerts",
	})

	m.OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldwatch_alert_operation_duration_seconds",
		Help:    "Duration of alert operations including retries",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation"})

	m.collectors = []prometheus.Collector{
		m.TransitionsTotal, m.OpenAlerts, m.RetriesTotal,
		m.FailuresTotal, m.StaleReadingsTotal, m.OperationDuration,
	}
}

// RecordOpened counts a newly opened alert.
func (m *AlertingMetrics) RecordOpened(condition, severity string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(TransitionOpened, condition, severity).Inc()
	m.OpenAlerts.WithLabelValues(condition).Inc()
}

// RecordResolved counts a resolved alert.
func (m *AlertingMetrics) RecordResolved(condition, severity string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(TransitionResolved, condition, severity).Inc()
	m.OpenAlerts.WithLabelValues(condition).Dec()
}

// SetOpen sets the open gauge of a condition, used when loading state.
func (m *AlertingMetrics) SetOpen(condition string, n int) {
	if m == nil {
		return
	}
	m.OpenAlerts.WithLabelValues(condition).Set(float64(n))
}

// RecordRetry counts a retried attempt.
func (m *AlertingMetrics) RecordRetry(operation, reason string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(operation, reason).Inc()
}

// RecordFailure counts an operation that failed after all attempts.
func (m *AlertingMetrics) RecordFailure(operation, category string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(operation, category).Inc()
}

// RecordStale counts a stale replayed reading.
func (m *AlertingMetrics) RecordStale() {
	if m == nil {
		return
	}
	m.StaleReadingsTotal.Inc()
}

// ObserveDuration records how long an operation took.
func (m *AlertingMetrics) ObserveDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *AlertingMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *AlertingMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
