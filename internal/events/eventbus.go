package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// EventBus provides asynchronous event processing with non-blocking publishing
type EventBus struct {
	eventChan chan *AlertEvent

	bufferSize int
	workers    int

	// mu guards consumers and the open/closed state of eventChan
	mu        sync.RWMutex
	wg        sync.WaitGroup
	running   atomic.Bool
	closed    bool
	consumers []EventConsumer

	stats  EventBusStats
	logger logger.Logger
}

// Config holds event bus configuration
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 1000,
		Workers:    4,
	}
}

// ConfigFromSettings converts event bus settings.
func ConfigFromSettings(s *conf.EventBusSettings) *Config {
	cfg := DefaultConfig()
	if s == nil {
		return cfg
	}
	if s.BufferSize > 0 {
		cfg.BufferSize = s.BufferSize
	}
	if s.Workers > 0 {
		cfg.Workers = s.Workers
	}
	return cfg
}

// New creates an event bus. Workers start with the first registered consumer.
func New(config *Config) *EventBus {
	if config == nil {
		config = DefaultConfig()
	}

	eb := &EventBus{
		eventChan:  make(chan *AlertEvent, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    config.Workers,
		logger:     GetLogger(),
	}

	eb.logger.Info("event bus initialized",
		logger.Int("buffer_size", config.BufferSize),
		logger.Int("workers", config.Workers))

	return eb
}

// RegisterConsumer adds a new event consumer
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return fmt.Errorf("event bus is shut down")
	}
	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)
	eb.logger.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	if len(eb.consumers) == 1 {
		eb.start()
	}
	return nil
}

// TryPublish attempts to publish an event without blocking.
// Returns true if the event was accepted, false if dropped.
func (eb *EventBus) TryPublish(event *AlertEvent) bool {
	if eb == nil || event == nil || !eb.running.Load() {
		return false
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		eb.logger.Debug("event dropped due to full buffer",
			logger.String("type", string(event.Type)),
			logger.String("device_id", event.DeviceID))
		return false
	}
}

// start begins the worker goroutines. Callers hold mu.
func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}

	eb.logger.Debug("starting event bus workers", logger.Int("count", eb.workers))
	for i := range eb.workers {
		eb.wg.Go(func() { eb.worker(i) })
	}
}

// worker processes events until the channel is closed and drained
func (eb *EventBus) worker(id int) {

	log := eb.logger.With(logger.Int("worker_id", id))
	log.Trace("worker started")

	for event := range eb.eventChan {
		eb.processEvent(event, log)
	}
	log.Trace("worker stopped")
}

// processEvent sends the event to all registered consumers
func (eb *EventBus) processEvent(event *AlertEvent, log logger.Logger) {
	eb.mu.RLock()
	consumers := make([]EventConsumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.RUnlock()

	for _, consumer := range consumers {
		// A panicking consumer must not take the worker down.
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("event_id", event.ID))
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				log.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.Error(err),
					logger.String("event_id", event.ID),
					logger.String("type", string(event.Type)))
				return
			}
			atomic.AddUint64(&eb.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown stops accepting events, lets workers drain the buffer and waits
// for them up to timeout.
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil {
		return nil
	}

	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return nil
	}
	eb.closed = true
	eb.running.Store(false)
	close(eb.eventChan)
	eb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		eb.logger.Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}

	return EventBusStats{
		EventsReceived:  atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
