// Package alerting turns evaluator output into durable alert state.
//
// Per device and condition an alert moves Nominal -> Open -> Resolved. A
// still-breaching reading leaves the open alert untouched; a recovering
// reading or an operator resolves it; the next breach opens a new alert.
// All transitions of one device are serialized by a keyed mutex and applied
// in one store transaction that re-checks the snapshot they were computed
// from, so at most one alert per (device, condition) is ever open.
package alerting

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/evaluator"
	"github.com/sarawakflora/fieldwatch/internal/events"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
)

// Errors callers can match with errors.Is.
var (
	ErrUnknownDevice = repository.ErrDeviceNotFound
	ErrUnknownAlert  = repository.ErrAlertNotFound
)

// Operation names used in logs and metrics.
const (
	opRecordReading = "record_reading"
	opResolve       = "resolve"
	opResolveAll    = "resolve_all"
)

// DeviceLookup resolves registered devices.
type DeviceLookup interface {
	Device(ctx context.Context, deviceID string) (*entities.Device, error)
}

// Outcome lists the alerts one RecordReading call opened and resolved.
type Outcome struct {
	Opened   []*entities.Alert
	Resolved []*entities.Alert
	// Stale is set when the reading was older than the newest evaluated
	// one. Stale readings open alerts but never resolve them.
	Stale bool
}

// Policy is the swappable default evaluation policy.
type Policy struct {
	Thresholds      *evaluator.Policy
	EscalationRatio float64
}

// PolicyFromSettings builds the policy from alerting settings.
func PolicyFromSettings(s *conf.AlertingSettings) *Policy {
	if s == nil {
		return &Policy{Thresholds: evaluator.DefaultPolicy(), EscalationRatio: DefaultEscalationRatio}
	}
	return &Policy{
		Thresholds:      evaluator.PolicyFromSettings(&s.Thresholds),
		EscalationRatio: s.EscalationRatio,
	}
}

// Manager owns the alert lifecycle.
type Manager struct {
	alerts   repository.AlertRepository
	readings repository.ReadingRepository
	devices  DeviceLookup

	policy atomic.Pointer[Policy]
	retry  RetryConfig
	locks  *keyedMutex
	// storeTimeout bounds each store attempt and each wait for a device
	// lock; zero means no bound beyond the caller's context.
	storeTimeout time.Duration

	publisher events.Publisher
	metrics   *metrics.AlertingMetrics
	now       func() time.Time
	logger    logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy sets the initial default policy.
func WithPolicy(p *Policy) Option {
	return func(m *Manager) {
		if p != nil {
			m.policy.Store(p)
		}
	}
}

// WithRetry sets the retry bounds of store transitions.
func WithRetry(cfg RetryConfig) Option {
	return func(m *Manager) { m.retry = cfg }
}

// WithStoreTimeout bounds every store attempt and the wait for a device's
// lock by d.
func WithStoreTimeout(d time.Duration) Option {
	return func(m *Manager) { m.storeTimeout = d }
}

// WithPublisher publishes every transition on p.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics records transitions and retries in am.
func WithMetrics(am *metrics.AlertingMetrics) Option {
	return func(m *Manager) { m.metrics = am }
}

// WithClock overrides the clock used for creation and resolution times.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an alert lifecycle manager.
func NewManager(alerts repository.AlertRepository, readings repository.ReadingRepository, devices DeviceLookup, opts ...Option) *Manager {
	m := &Manager{
		alerts:   alerts,
		readings: readings,
		devices:  devices,
		retry:    DefaultRetryConfig(),
		locks:    newKeyedMutex(),
		now:      time.Now,
		logger:   GetLogger(),
	}
	m.policy.Store(PolicyFromSettings(nil))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetPolicy swaps the default policy. Evaluations already running keep
// the policy they started with.
func (m *Manager) SetPolicy(p *Policy) {
	if p == nil {
		return
	}
	m.policy.Store(p)
	m.logger.Info("default alert policy updated",
		logger.Int("bands", len(p.Thresholds.Bands)),
		logger.Float64("escalation_ratio", p.EscalationRatio))
}

// CurrentPolicy returns the active default policy.
func (m *Manager) CurrentPolicy() *Policy {
	return m.policy.Load()
}

// Profile returns the effective profile of device under the active policy.
func (m *Manager) Profile(device *entities.Device) evaluator.Profile {
	return evaluator.ProfileFor(device, m.policy.Load().Thresholds)
}

// RecordReading evaluates a stored reading of deviceID and applies the
// resulting transitions: missing alerts are opened, recovered ones
// resolved, and the reading is marked evaluated, all atomically.
func (m *Manager) RecordReading(ctx context.Context, deviceID string, reading *entities.Reading) (*Outcome, error) {
	if reading == nil || reading.ID == 0 || reading.DeviceID != deviceID {
		return nil, errors.New(fmt.Errorf("%w: reading must be stored and belong to device", repository.ErrInvalidInput)).
			Component("alerting").
			Category(errors.CategoryValidation).
			DeviceContext(deviceID).
			Build()
	}

	unlock, err := m.lock(ctx, opRecordReading, deviceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var outcome *Outcome
	err = m.withRetry(ctx, opRecordReading, deviceID, func(ctx context.Context) error {
		var err error
		outcome, err = m.recordOnce(ctx, deviceID, reading)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.announce(outcome.Opened, outcome.Resolved, "")
	if outcome.Stale {
		m.metrics.RecordStale()
	}
	if len(outcome.Opened) > 0 || len(outcome.Resolved) > 0 {
		m.logger.Info("alert state changed",
			logger.String("device_id", deviceID),
			logger.Uint64("reading_id", uint64(reading.ID)),
			logger.Int("opened", len(outcome.Opened)),
			logger.Int("resolved", len(outcome.Resolved)))
	}
	return outcome, nil
}

// recordOnce computes and applies the transition of one reading from a
// fresh snapshot.
func (m *Manager) recordOnce(ctx context.Context, deviceID string, reading *entities.Reading) (*Outcome, error) {
	device, err := m.devices.Device(ctx, deviceID)
	if err != nil {
		return nil, m.deviceError(deviceID, err)
	}

	newest, evaluated, err := m.readings.NewestEvaluatedAt(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	// A late reading still opens alerts for its breaches but cannot resolve
	// anything a newer reading has already decided.
	stale := evaluated && reading.ReadingTimestamp.Before(newest)
	if stale {
		m.logger.Debug("stale reading, resolutions skipped",
			logger.String("device_id", deviceID),
			logger.Uint64("reading_id", uint64(reading.ID)),
			logger.Time("reading_time", reading.ReadingTimestamp),
			logger.Time("newest_evaluated", newest))
	}

	policy := m.policy.Load()
	profile := evaluator.ProfileFor(device, policy.Thresholds)
	breaches := evaluator.Evaluate(reading, profile)

	open, err := m.alerts.OpenAlerts(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	openByCondition := make(map[evaluator.Condition]bool, len(open))
	for i := range open {
		openByCondition[evaluator.Condition(open[i].AlertType)] = true
	}

	now := m.now()
	t := &repository.Transition{
		DeviceID:   deviceID,
		ReadingID:  reading.ID,
		ResolvedAt: now,
		Resolution: entities.ResolutionRecovered,
	}

	breached := make(map[evaluator.Condition]bool, len(breaches))
	for _, b := range breaches {
		breached[b.Condition] = true
		if openByCondition[b.Condition] {
			continue
		}
		t.Open = append(t.Open, &entities.Alert{
			DeviceID:      deviceID,
			ReadingID:     reading.ID,
			AlertType:     string(b.Condition),
			Message:       Message(deviceID, b),
			Severity:      Severity(b, policy.EscalationRatio),
			MeasuredValue: measuredValue(b),
			CreatedAt:     now,
		})
	}

	for i := range open {
		c := evaluator.Condition(open[i].AlertType)
		if stale || breached[c] || !observes(reading, c) {
			continue
		}
		t.Resolve = append(t.Resolve, open[i].ID)
	}

	res, err := m.alerts.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	return &Outcome{Opened: res.Opened, Resolved: res.Resolved, Stale: stale}, nil
}

// observes reports whether reading carries a value for condition c. Open
// alerts of conditions a reading says nothing about stay open.
func observes(reading *entities.Reading, c evaluator.Condition) bool {
	switch c {
	case evaluator.Temperature:
		return reading.Temperature != nil
	case evaluator.Humidity:
		return reading.Humidity != nil
	case evaluator.SoilMoisture:
		return reading.SoilMoisture != nil
	case evaluator.Motion:
		return true
	default:
		_, ok := reading.Metrics[string(c)]
		return ok
	}
}

// Resolve marks an alert resolved by actor. Resolving an already resolved
// alert succeeds without changes and returns the stored alert.
func (m *Manager) Resolve(ctx context.Context, alertID uint, actor string) (*entities.Alert, error) {
	alert, err := m.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, m.alertError(alertID, err)
	}

	unlock, err := m.lock(ctx, opResolve, alert.DeviceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var resolved []*entities.Alert
	err = m.withRetry(ctx, opResolve, alert.DeviceID, func(ctx context.Context) error {
		resolved = nil
		current, err := m.alerts.GetAlert(ctx, alertID)
		if err != nil {
			return m.alertError(alertID, err)
		}
		alert = current
		if current.IsResolved {
			return nil
		}

		res, err := m.alerts.ApplyTransition(ctx, &repository.Transition{
			DeviceID:   current.DeviceID,
			Resolve:    []uint{current.ID},
			ResolvedAt: m.now(),
			ResolvedBy: actor,
			Resolution: entities.ResolutionOperator,
		})
		if err != nil {
			return err
		}
		resolved = res.Resolved
		alert = res.Resolved[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.announce(nil, resolved, actor)
	if len(resolved) > 0 {
		m.logger.Info("alert resolved by operator",
			logger.Uint64("alert_id", uint64(alertID)),
			logger.String("device_id", alert.DeviceID),
			logger.String("actor", actor))
	}
	return alert, nil
}

// ResolveAllForDevice resolves every open alert of a device in one
// transaction and returns the alerts it resolved.
func (m *Manager) ResolveAllForDevice(ctx context.Context, deviceID, actor string) ([]*entities.Alert, error) {
	if _, err := m.devices.Device(ctx, deviceID); err != nil {
		return nil, m.deviceError(deviceID, err)
	}

	unlock, err := m.lock(ctx, opResolveAll, deviceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var resolved []*entities.Alert
	err = m.withRetry(ctx, opResolveAll, deviceID, func(ctx context.Context) error {
		resolved = nil
		open, err := m.alerts.OpenAlerts(ctx, deviceID)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return nil
		}

		ids := make([]uint, len(open))
		for i := range open {
			ids[i] = open[i].ID
		}
		res, err := m.alerts.ApplyTransition(ctx, &repository.Transition{
			DeviceID:   deviceID,
			Resolve:    ids,
			ResolvedAt: m.now(),
			ResolvedBy: actor,
			Resolution: entities.ResolutionOperator,
		})
		if err != nil {
			return err
		}
		resolved = res.Resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.announce(nil, resolved, actor)
	m.logger.Info("device alerts resolved",
		logger.String("device_id", deviceID),
		logger.Int("resolved", len(resolved)),
		logger.String("actor", actor))
	return resolved, nil
}

// OpenAlerts returns the open alerts of a device, oldest first.
func (m *Manager) OpenAlerts(ctx context.Context, deviceID string) ([]entities.Alert, error) {
	if _, err := m.devices.Device(ctx, deviceID); err != nil {
		return nil, m.deviceError(deviceID, err)
	}
	return m.alerts.OpenAlerts(ctx, deviceID)
}

// IsStillActive reports whether alert is open and the newest reading of its
// device still breaches the alert's condition. The alert record itself is
// never touched by repeated breaches, so this is the freshness signal.
func (m *Manager) IsStillActive(ctx context.Context, alert *entities.Alert) (bool, error) {
	if alert == nil || alert.IsResolved {
		return false, nil
	}

	device, err := m.devices.Device(ctx, alert.DeviceID)
	if err != nil {
		return false, m.deviceError(alert.DeviceID, err)
	}
	latest, err := m.readings.Latest(ctx, alert.DeviceID)
	if errors.Is(err, repository.ErrReadingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	breaches := evaluator.Evaluate(latest, m.Profile(device))
	return slices.Contains(evaluator.Conditions(breaches), evaluator.Condition(alert.AlertType)), nil
}

// SyncOpenGauge loads the open alert counts into the metrics.
func (m *Manager) SyncOpenGauge(ctx context.Context) error {
	if m.metrics == nil {
		return nil
	}
	open, err := m.alerts.ListAlerts(ctx, repository.AlertFilter{Status: repository.AlertStatusOpen})
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, c := range evaluator.BuiltIn() {
		counts[string(c)] = 0
	}
	for i := range open {
		counts[open[i].AlertType]++
	}
	for c, n := range counts {
		m.metrics.SetOpen(c, n)
	}
	return nil
}

// announce publishes events and counts transitions.
func (m *Manager) announce(opened, resolved []*entities.Alert, actor string) {
	for _, a := range opened {
		m.metrics.RecordOpened(a.AlertType, a.Severity)
		m.publish(events.NewAlertEvent(events.AlertOpened, a, ""))
	}
	for _, a := range resolved {
		m.metrics.RecordResolved(a.AlertType, a.Severity)
		m.publish(events.NewAlertEvent(events.AlertResolved, a, actor))
	}
}

func (m *Manager) publish(e *events.AlertEvent) {
	if m.publisher == nil {
		return
	}
	if !m.publisher.TryPublish(e) {
		m.logger.Debug("alert event not published",
			logger.String("type", string(e.Type)),
			logger.String("device_id", e.DeviceID))
	}
}

func (m *Manager) deviceError(deviceID string, err error) error {
	if !errors.Is(err, repository.ErrDeviceNotFound) {
		return err
	}
	return errors.New(fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)).
		Component("alerting").
		Category(errors.CategoryNotFound).
		DeviceContext(deviceID).
		Build()
}

func (m *Manager) alertError(alertID uint, err error) error {
	if !errors.Is(err, repository.ErrAlertNotFound) {
		return err
	}
	return errors.New(fmt.Errorf("%w: %d", ErrUnknownAlert, alertID)).
		Component("alerting").
		Category(errors.CategoryNotFound).
		Context("alert_id", alertID).
		Build()
}

// measuredValue is the metric value stored with an alert. Motion carries
// no numeric metric.
func measuredValue(b evaluator.Breach) *float64 {
	if b.Condition == evaluator.Motion {
		return nil
	}
	v := b.Value
	return &v
}
