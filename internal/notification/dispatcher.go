package notification

import (
	"context"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/alerting"
	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/events"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
)

// Delivery statuses and filter reasons reported to metrics.
const (
	statusSuccess     = "success"
	statusError       = "error"
	statusCircuitOpen = "circuit_open"

	filteredNotOpened   = "not_opened"
	filteredSeverity    = "below_min_severity"
	filteredRateLimited = "rate_limited"
)

// DefaultTimeout bounds one delivery to one provider.
const DefaultTimeout = 10 * time.Second

type registeredProvider struct {
	prov    Provider
	breaker *PushCircuitBreaker
}

// Dispatcher is an event bus consumer pushing opened alerts to providers.
type Dispatcher struct {
	providers   []registeredProvider
	minSeverity string
	timeout     time.Duration
	limiter     *PushRateLimiter
	breakerCfg  CircuitBreakerConfig
	metrics     *metrics.NotificationMetrics
	logger      logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-provider delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Dispatcher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRateLimiter replaces the default rate limiter.
func WithRateLimiter(rl *PushRateLimiter) Option {
	return func(p *Dispatcher) { p.limiter = rl }
}

// WithMetrics records deliveries in m.
func WithMetrics(m *metrics.NotificationMetrics) Option {
	return func(p *Dispatcher) { p.metrics = m }
}

// WithCircuitBreaker sets the breaker configuration of every provider.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(p *Dispatcher) { p.breakerCfg = cfg }
}

// NewDispatcher creates a dispatcher for the enabled providers. Alerts
// below minSeverity are not pushed; an empty minSeverity pushes all.
func NewDispatcher(providers []Provider, minSeverity string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		minSeverity: minSeverity,
		timeout:     DefaultTimeout,
		limiter:     NewPushRateLimiter(DefaultPushRateLimiterConfig()),
		breakerCfg:  DefaultCircuitBreakerConfig(),
		logger:      GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, p := range providers {
		if p == nil || !p.IsEnabled() {
			continue
		}
		d.providers = append(d.providers, registeredProvider{
			prov:    p,
			breaker: NewPushCircuitBreaker(d.breakerCfg, d.metrics, p.GetName()),
		})
	}
	return d
}

// NewDispatcherFromSettings builds a dispatcher with one shoutrrr provider
// serving all configured URLs.
func NewDispatcherFromSettings(s *conf.PushSettings, m *metrics.NotificationMetrics) (*Dispatcher, error) {
	prov := NewShoutrrrProvider("shoutrrr", s.Enabled, s.URLs, s.Timeout)
	if err := prov.ValidateConfig(); err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return NewDispatcher([]Provider{prov}, s.MinSeverity, WithMetrics(m), WithTimeout(s.Timeout)), nil
}

// Name implements events.EventConsumer.
func (d *Dispatcher) Name() string { return "push" }

// ProcessEvent pushes ev when it opened an alert of sufficient severity.
func (d *Dispatcher) ProcessEvent(ev *events.AlertEvent) error {
	if ev.Type != events.AlertOpened {
		d.metrics.RecordFiltered(filteredNotOpened)
		return nil
	}
	if !d.severityAllowed(ev.Alert.Severity) {
		d.metrics.RecordFiltered(filteredSeverity)
		return nil
	}
	if len(d.providers) == 0 {
		return nil
	}
	if !d.limiter.Allow() {
		d.metrics.RecordFiltered(filteredRateLimited)
		d.logger.Warn("push rate limit reached, alert not pushed",
			logger.String("device_id", ev.DeviceID),
			logger.Uint64("alert_id", uint64(ev.Alert.ID)))
		return nil
	}

	n := NewAlertNotification(ev)
	var errs []error
	for _, rp := range d.providers {
		if err := d.deliver(rp, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(rp registeredProvider, n *Notification) error {
	name := rp.prov.GetName()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := rp.breaker.Call(ctx, func(ctx context.Context) error {
		return rp.prov.Send(ctx, n)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		d.metrics.RecordDelivery(name, statusSuccess, elapsed)
		d.logger.Debug("alert pushed",
			logger.String("provider", name),
			logger.String("notification_id", n.ID),
			logger.String("device_id", n.DeviceID))
		return nil
	case errors.Is(err, ErrCircuitBreakerOpen), errors.Is(err, ErrTooManyRequests):
		d.metrics.RecordDelivery(name, statusCircuitOpen, elapsed)
	default:
		d.metrics.RecordDelivery(name, statusError, elapsed)
	}
	d.logger.Warn("push delivery failed",
		logger.String("provider", name),
		logger.String("notification_id", n.ID),
		logger.Error(err))
	return err
}

func (d *Dispatcher) severityAllowed(severity string) bool {
	if d.minSeverity == "" {
		return true
	}
	return alerting.SeverityRank(severity) >= alerting.SeverityRank(d.minSeverity)
}
