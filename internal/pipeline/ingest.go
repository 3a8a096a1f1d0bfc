// Package pipeline connects reading ingestion to alert evaluation.
//
// A reading is acknowledged once it is durably stored. Evaluation runs
// right after, but a failed evaluation never loses the reading: it stays
// marked unevaluated and the Reevaluator picks it up later.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/alerting"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
	"github.com/sarawakflora/fieldwatch/internal/readings"
)

// Ingestion sources.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Appender stores validated samples.
type Appender interface {
	Append(ctx context.Context, deviceID string, sample *readings.Sample) (*entities.Reading, error)
}

// Recorder evaluates stored readings.
type Recorder interface {
	RecordReading(ctx context.Context, deviceID string, reading *entities.Reading) (*alerting.Outcome, error)
}

// Result is the outcome of one ingestion.
type Result struct {
	Reading *entities.Reading
	Outcome *alerting.Outcome
	// EvaluationErr is set when the reading was stored but its evaluation
	// failed; the re-evaluator will retry it.
	EvaluationErr error
}

// Ingestor validates, stores and evaluates readings.
type Ingestor struct {
	ledger   Appender
	recorder Recorder
	metrics  *metrics.IngestionMetrics
	timeout  time.Duration
	logger   logger.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithIngestionMetrics counts ingested readings in m.
func WithIngestionMetrics(m *metrics.IngestionMetrics) IngestorOption {
	return func(i *Ingestor) { i.metrics = m }
}

// WithEvaluationTimeout bounds the inline evaluation of a stored reading.
func WithEvaluationTimeout(d time.Duration) IngestorOption {
	return func(i *Ingestor) { i.timeout = d }
}

// NewIngestor creates an Ingestor.
func NewIngestor(ledger Appender, recorder Recorder, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		ledger:   ledger,
		recorder: recorder,
		logger:   GetLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest stores the reading described by p and evaluates it. An error is
// returned only when nothing was stored.
func (i *Ingestor) Ingest(ctx context.Context, source string, p *Payload) (*Result, error) {
	if p == nil {
		i.metrics.RecordReading(source, metrics.IngestInvalid)
		return nil, errors.New(fmt.Errorf("%w: payload is required", readings.ErrInvalidReading)).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	deviceID := strings.TrimSpace(p.DeviceID)

	reading, err := i.ledger.Append(ctx, deviceID, p.Sample())
	if err != nil {
		i.metrics.RecordReading(source, ingestOutcome(err))
		i.logger.Info("reading rejected",
			logger.String("source", source),
			logger.String("device_id", deviceID),
			logger.Error(err))
		return nil, err
	}
	i.metrics.RecordReading(source, metrics.IngestAccepted)

	result := &Result{Reading: reading}
	evalCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	outcome, err := i.recorder.RecordReading(evalCtx, deviceID, reading)
	if err != nil {
		i.metrics.RecordEvaluationFailure(source)
		i.logger.Warn("reading stored but evaluation failed, leaving it for re-evaluation",
			logger.String("source", source),
			logger.String("device_id", deviceID),
			logger.Uint64("reading_id", uint64(reading.ID)),
			logger.Error(err))
		result.EvaluationErr = errors.New(err).
			Component("pipeline").
			Category(errors.CategoryEvaluation).
			Context("reading_id", reading.ID).
			Build()
		return result, nil
	}
	result.Outcome = outcome
	return result, nil
}

func ingestOutcome(err error) string {
	switch {
	case errors.Is(err, readings.ErrInvalidReading):
		return metrics.IngestInvalid
	case errors.Is(err, repository.ErrDeviceNotFound):
		return metrics.IngestUnknownDevice
	default:
		return metrics.IngestError
	}
}
