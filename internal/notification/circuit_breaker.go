package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed lets deliveries through.
	StateClosed CircuitState = iota
	// StateHalfOpen lets a limited number of trial deliveries through.
	StateHalfOpen
	// StateOpen rejects deliveries until the timeout elapses.
	StateOpen
)

// String returns the string representation of CircuitState.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitBreakerOpen is returned when the circuit breaker is open.
	ErrCircuitBreakerOpen = errors.NewStd("circuit breaker is open")
	// ErrTooManyRequests is returned when a half-open breaker already
	// admitted its trial requests.
	ErrTooManyRequests = errors.NewStd("circuit breaker is half-open, too many requests")
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int
	// Timeout is how long to wait before transitioning from Open to Half-Open.
	Timeout time.Duration
	// HalfOpenMaxRequests is the maximum number of requests allowed in half-open state.
	HalfOpenMaxRequests int
}

// DefaultCircuitBreakerConfig returns default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Validate checks if the circuit breaker configuration is valid.
func (c CircuitBreakerConfig) Validate() error {
	if c.MaxFailures < 1 {
		return fmt.Errorf("max_failures must be at least 1, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.HalfOpenMaxRequests < 1 {
		return fmt.Errorf("half_open_max_requests must be at least 1, got %d", c.HalfOpenMaxRequests)
	}
	return nil
}

// PushCircuitBreaker stops deliveries to a provider after repeated failures
// and tries it again once the timeout has passed.
type PushCircuitBreaker struct {
	config           CircuitBreakerConfig
	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	halfOpenRequests int
	mu               sync.RWMutex
	now              func() time.Time
	metrics          *metrics.NotificationMetrics
	providerName     string
	logger           logger.Logger
}

// NewPushCircuitBreaker creates a closed breaker for providerName. An
// invalid config is logged and used as given.
func NewPushCircuitBreaker(config CircuitBreakerConfig, m *metrics.NotificationMetrics, providerName string) *PushCircuitBreaker {
	log := GetLogger().With(logger.String("provider", providerName))
	if err := config.Validate(); err != nil {
		log.Warn("circuit breaker config validation failed", logger.Error(err))
	}

	cb := &PushCircuitBreaker{
		config:       config,
		state:        StateClosed,
		now:          time.Now,
		metrics:      m,
		providerName: providerName,
		logger:       log,
	}
	cb.lastStateChange = cb.now()
	cb.metrics.UpdateCircuitBreakerState(providerName, int(StateClosed))
	return cb
}

// Call executes fn if the breaker allows it and records the result.
func (cb *PushCircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return fmt.Errorf("circuit breaker rejected request (%v, %d consecutive failures): %w",
			cb.State(), cb.Failures(), err)
	}

	err := fn(ctx)
	cb.afterCall(err)
	return err
}

func (cb *PushCircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) >= cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.halfOpenRequests = 1
			return nil
		}
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.HalfOpenMaxRequests {
			return ErrTooManyRequests
		}
		cb.halfOpenRequests++
		return nil
	default:
		return ErrCircuitBreakerOpen
	}
}

func (cb *PushCircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		cb.lastFailureTime = time.Time{}
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		return
	}

	// Caller cancellation says nothing about the provider.
	if errors.Is(err, context.Canceled) {
		return
	}

	cb.failures++
	cb.lastFailureTime = cb.now()
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	case StateOpen:
	}
}

// setState must be called with mu held.
func (cb *PushCircuitBreaker) setState(newState CircuitState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()
	cb.metrics.UpdateCircuitBreakerState(cb.providerName, int(newState))

	cb.logger.Info("circuit breaker state transition",
		logger.String("old_state", oldState.String()),
		logger.String("new_state", newState.String()),
		logger.Int("consecutive_failures", cb.failures))
}

// State returns the current state of the circuit breaker.
func (cb *PushCircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current number of consecutive failures.
func (cb *PushCircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Reset closes the breaker.
func (cb *PushCircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
	cb.halfOpenRequests = 0
	cb.setState(StateClosed)
}

// IsHealthy returns true if the circuit breaker is closed.
func (cb *PushCircuitBreaker) IsHealthy() bool {
	return cb.State() == StateClosed
}
