package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion outcome labels.
const (
	IngestAccepted      = "accepted"
	IngestInvalid       = "invalid"
	IngestUnknownDevice = "unknown_device"
	IngestError         = "error"
)

// IngestionMetrics contains the Prometheus metrics of reading ingestion.
type IngestionMetrics struct {
	ReadingsTotal      *prometheus.CounterVec // by source, outcome
	EvaluationFailures *prometheus.CounterVec // by source
	ReevaluatedTotal   *prometheus.CounterVec // by outcome

	collectors []prometheus.Collector
}

// NewIngestionMetrics creates and registers the ingestion metrics.
func NewIngestionMetrics(registry *prometheus.Registry) (*IngestionMetrics, error) {
	m := &IngestionMetrics{}
	m.ReadingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldwatch_readings_ingested_total",
		Help: "Total number of submitted readings by source and outcome",
	}, []string{"source", "outcome"})
	m.EvaluationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldwatch_reading_evaluation_failures_total",
		Help: "Total number of stored readings whose alert evaluation failed",
	}, []string{"source"})
	m.ReevaluatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldwatch_readings_reevaluated_total",
		Help: "Total number of readings swept by the re-evaluator by outcome",
	}, []string{"outcome"})
	m.collectors = []prometheus.Collector{m.ReadingsTotal, m.EvaluationFailures, m.ReevaluatedTotal}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingestion metrics: %w", err)
	}
	return m, nil
}

// RecordReading counts a submitted reading.
func (m *IngestionMetrics) RecordReading(source, outcome string) {
	if m == nil {
		return
	}
	m.ReadingsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordEvaluationFailure counts a stored reading left for re-evaluation.
func (m *IngestionMetrics) RecordEvaluationFailure(source string) {
	if m == nil {
		return
	}
	m.EvaluationFailures.WithLabelValues(source).Inc()
}

// RecordReevaluation counts a swept reading.
func (m *IngestionMetrics) RecordReevaluation(outcome string) {
	if m == nil {
		return
	}
	m.ReevaluatedTotal.WithLabelValues(outcome).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *IngestionMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *IngestionMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
