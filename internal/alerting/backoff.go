package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// RetryConfig bounds the retries of store transitions.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the built-in retry bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 4, InitialDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// RetryConfigFromSettings converts retry settings, keeping defaults for
// unset values.
func RetryConfigFromSettings(s *conf.RetrySettings) RetryConfig {
	cfg := DefaultRetryConfig()
	if s == nil {
		return cfg
	}
	if s.MaxAttempts > 0 {
		cfg.MaxAttempts = s.MaxAttempts
	}
	if s.InitialDelay > 0 {
		cfg.InitialDelay = s.InitialDelay
	}
	if s.MaxDelay > 0 {
		cfg.MaxDelay = s.MaxDelay
	}
	return cfg
}

// backoffStrategy yields exponentially growing delays between attempts.
type backoffStrategy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	attempt      int
}

func newBackoffStrategy(cfg RetryConfig) *backoffStrategy {
	return &backoffStrategy{
		maxAttempts:  cfg.MaxAttempts,
		initialDelay: cfg.InitialDelay,
		maxDelay:     cfg.MaxDelay,
	}
}

// nextDelay returns the delay before the next retry, or false when the
// attempts are used up. The first attempt is not counted as a retry.
func (b *backoffStrategy) nextDelay() (time.Duration, bool) {
	b.attempt++
	if b.attempt >= b.maxAttempts {
		return 0, false
	}
	delay := b.initialDelay * time.Duration(1<<uint(b.attempt-1))
	if delay > b.maxDelay || delay <= 0 {
		delay = b.maxDelay
	}
	return delay, true
}

// retryReason names why err may be retried, or returns "" when it may not.
func retryReason(err error) string {
	switch {
	case repository.IsConcurrencyConflict(err):
		return "conflict"
	case repository.IsStoreUnavailable(err):
		return "store_unavailable"
	default:
		return ""
	}
}

// withRetry runs fn until it succeeds, fails permanently or the attempts
// run out. Each attempt gets its own context bounded by the store timeout.
// fn must re-read any state it depends on; it is never left half-applied
// because every write happens in one store transaction.
func (m *Manager) withRetry(ctx context.Context, operation, deviceID string, fn func(context.Context) error) error {
	start := m.now()
	defer func() { m.metrics.ObserveDuration(operation, m.now().Sub(start)) }()

	backoff := newBackoffStrategy(m.retry)
	for {
		err := m.attempt(ctx, fn)
		if err == nil {
			return nil
		}

		reason := retryReason(err)
		if reason == "" || ctx.Err() != nil {
			m.recordFailure(operation, err)
			return err
		}

		delay, ok := backoff.nextDelay()
		if !ok {
			m.recordFailure(operation, err)
			m.logger.Warn("retries exhausted",
				logger.String("operation", operation),
				logger.String("device_id", deviceID),
				logger.Int("attempts", backoff.attempt),
				logger.Error(err))
			return err
		}

		m.metrics.RecordRetry(operation, reason)
		m.logger.Debug("retrying alert operation",
			logger.String("operation", operation),
			logger.String("device_id", deviceID),
			logger.String("reason", reason),
			logger.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.recordFailure(operation, err)
			return err
		case <-timer.C:
		}
	}
}

func (m *Manager) attempt(ctx context.Context, fn func(context.Context) error) error {
	if m.storeTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	return fn(attemptCtx)
}

// lock takes the per-device lock of deviceID. A wait that outlasts the
// store timeout fails with a retryable ErrStoreUnavailable.
func (m *Manager) lock(ctx context.Context, operation, deviceID string) (func(), error) {
	waitCtx := ctx
	if m.storeTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.storeTimeout)
		defer cancel()
	}

	start := time.Now()
	unlock, err := m.locks.Lock(waitCtx, deviceID)
	if err == nil {
		return unlock, nil
	}

	if errors.Is(err, context.Canceled) {
		err = errors.New(err).
			Component("alerting").
			Category(errors.CategoryCancellation).
			DeviceContext(deviceID).
			Context("operation", operation).
			Build()
	} else {
		err = errors.New(fmt.Errorf("%w: device busy: %w", repository.ErrStoreUnavailable, err)).
			Component("alerting").
			Category(errors.CategoryTimeout).
			DeviceContext(deviceID).
			Timing(operation, time.Since(start)).
			Build()
	}
	m.recordFailure(operation, err)
	m.logger.Warn("device lock not acquired",
		logger.String("operation", operation),
		logger.String("device_id", deviceID),
		logger.Error(err))
	return nil, err
}

func (m *Manager) recordFailure(operation string, err error) {
	category := string(errors.CategoryGeneric)
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		category = ee.GetCategory()
	}
	m.metrics.RecordFailure(operation, category)
}
