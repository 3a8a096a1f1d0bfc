package pipeline

import (
	"context"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
)

// Re-evaluation outcome labels.
const (
	reevaluateOK     = "evaluated"
	reevaluateFailed = "failed"
)

// Defaults of the re-evaluation sweep.
const (
	DefaultReevaluateInterval = 30 * time.Second
	DefaultReevaluateBatch    = 100
)

// Reevaluator periodically evaluates stored readings still marked
// unevaluated, oldest first.
type Reevaluator struct {
	readings repository.ReadingRepository
	recorder Recorder
	metrics  *metrics.IngestionMetrics

	interval time.Duration
	batch    int
	// grace skips readings younger than this; inline evaluation is
	// probably still running for them.
	grace time.Duration
	now   func() time.Time

	logger logger.Logger
}

// NewReevaluator creates a Reevaluator from settings; nil settings use the
// defaults.
func NewReevaluator(readings repository.ReadingRepository, recorder Recorder, settings *conf.ReevaluateSettings, m *metrics.IngestionMetrics) *Reevaluator {
	r := &Reevaluator{
		readings: readings,
		recorder: recorder,
		metrics:  m,
		interval: DefaultReevaluateInterval,
		batch:    DefaultReevaluateBatch,
		now:      time.Now,
		logger:   GetLogger(),
	}
	if settings != nil {
		if settings.Interval > 0 {
			r.interval = settings.Interval
		}
		if settings.BatchSize > 0 {
			r.batch = settings.BatchSize
		}
	}
	r.grace = r.interval / 2
	return r
}

// Run sweeps on every interval until ctx is done.
func (r *Reevaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("re-evaluator started",
		logger.Duration("interval", r.interval),
		logger.Int("batch_size", r.batch))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("re-evaluator stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("re-evaluation sweep failed", logger.Error(err))
			}
		}
	}
}

// Sweep evaluates one batch of unevaluated readings and returns how many
// were evaluated. A reading whose evaluation fails again stays unevaluated.
func (r *Reevaluator) Sweep(ctx context.Context) (int, error) {
	pending, err := r.readings.ListUnevaluated(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-r.grace)
	evaluated := 0
	for i := range pending {
		if ctx.Err() != nil {
			return evaluated, ctx.Err()
		}
		reading := &pending[i]
		if r.grace > 0 && reading.CreatedAt.After(cutoff) {
			continue
		}

		if _, err := r.recorder.RecordReading(ctx, reading.DeviceID, reading); err != nil {
			r.metrics.RecordReevaluation(reevaluateFailed)
			r.logger.Warn("re-evaluation failed",
				logger.String("device_id", reading.DeviceID),
				logger.Uint64("reading_id", uint64(reading.ID)),
				logger.Error(err))
			continue
		}
		r.metrics.RecordReevaluation(reevaluateOK)
		evaluated++
	}

	if evaluated > 0 {
		r.logger.Info("re-evaluated pending readings",
			logger.Int("evaluated", evaluated),
			logger.Int("pending", len(pending)))
	}
	return evaluated, nil
}
