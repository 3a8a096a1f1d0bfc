// Package readings implements the append-only ledger of device telemetry.
//
// The ledger validates and stores samples and serves ordered reads. It never
// evaluates alerts; ingestion stays independent of alert failures.
package readings

import (
	"context"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// ErrUnknownDevice is returned when a device id does not resolve.
var ErrUnknownDevice = repository.ErrDeviceNotFound

// ErrInvalidReading is returned for samples that must never be stored.
var ErrInvalidReading = errors.NewStd("invalid reading")

// Default bounds used when no settings are given.
const (
	DefaultHistoryLimit = 500
	DefaultPageSize     = 100
	DefaultListLimit    = 100
)

// Metric domains. Values outside them are rejected at ingestion.
var (
	TemperatureDomain  = Range{Min: -60, Max: 85}
	HumidityDomain     = Range{Min: 0, Max: 100}
	SoilMoistureDomain = Range{Min: 0, Max: 100}
)

// Range is an inclusive numeric interval.
type Range struct {
	Min, Max float64
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// DeviceLookup resolves registered devices.
type DeviceLookup interface {
	Device(ctx context.Context, deviceID string) (*entities.Device, error)
}

// Sample is one telemetry sample as submitted by a device.
type Sample struct {
	Timestamp      time.Time // zero means server-assigned
	Temperature    *float64
	Humidity       *float64
	SoilMoisture   *float64
	MotionDetected bool
	Metrics        map[string]float64
	Status         string
	Latitude       *float64
	Longitude      *float64
}

// Window bounds a History read. From is inclusive and To exclusive; Limit
// caps the count. With only Limit set the window holds the Limit most recent
// readings before To.
type Window struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Store is the reading ledger.
type Store struct {
	readings repository.ReadingRepository
	devices  DeviceLookup

	historyLimit int
	pageSize     int
	listLimit    int
	storeTimeout time.Duration

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithStoreTimeout bounds the write of an appended reading by d.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Store) { s.storeTimeout = d }
}

// WithSettings applies the configured read bounds.
func WithSettings(settings *conf.ReadingsSettings) Option {
	return func(s *Store) {
		if settings == nil {
			return
		}
		if settings.HistoryLimit > 0 {
			s.historyLimit = settings.HistoryLimit
		}
		if settings.PageSize > 0 {
			s.pageSize = settings.PageSize
		}
		if settings.ListLimit > 0 {
			s.listLimit = settings.ListLimit
		}
	}
}

// NewStore creates a reading ledger.
func NewStore(readings repository.ReadingRepository, devices DeviceLookup, opts ...Option) *Store {
	s := &Store{
		readings:     readings,
		devices:      devices,
		historyLimit: DefaultHistoryLimit,
		pageSize:     DefaultPageSize,
		listLimit:    DefaultListLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append validates sample and stores it as a new reading of deviceID.
func (s *Store) Append(ctx context.Context, deviceID string, sample *Sample) (*entities.Reading, error) {
	if sample == nil {
		return nil, invalid(deviceID, "sample", "sample is required")
	}
	if err := Validate(deviceID, sample); err != nil {
		return nil, err
	}

	if _, err := s.devices.Device(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, unknownDevice(deviceID)
		}
		return nil, err
	}

	ts := sample.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	reading := &entities.Reading{
		DeviceID:         deviceID,
		ReadingTimestamp: ts,
		Temperature:      sample.Temperature,
		Humidity:         sample.Humidity,
		SoilMoisture:     sample.SoilMoisture,
		MotionDetected:   sample.MotionDetected,
		Metrics:          sample.Metrics,
		ReadingStatus:    sample.Status,
		Latitude:         sample.Latitude,
		Longitude:        sample.Longitude,
	}
	if err := s.create(ctx, reading); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, unknownDevice(deviceID)
		}
		return nil, err
	}

	GetLogger().Debug("reading stored",
		logger.String("device_id", deviceID),
		logger.Uint64("reading_id", uint64(reading.ID)),
		logger.Time("timestamp", reading.ReadingTimestamp))

	return reading, nil
}

func (s *Store) create(ctx context.Context, reading *entities.Reading) error {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}
	return s.readings.CreateReading(ctx, reading)
}

// Validate checks a sample against the metric domains.
func Validate(deviceID string, sample *Sample) error {
	if deviceID == "" {
		return invalid(deviceID, "device_id", "device_id is required")
	}

	checks := []struct {
		name   string
		value  *float64
		domain Range
	}{
		{"temperature", sample.Temperature, TemperatureDomain},
		{"humidity", sample.Humidity, HumidityDomain},
		{"soil_moisture", sample.SoilMoisture, SoilMoistureDomain},
		{"location_latitude", sample.Latitude, Range{Min: -90, Max: 90}},
		{"location_longitude", sample.Longitude, Range{Min: -180, Max: 180}},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		v := *c.value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(deviceID, c.name, fmt.Sprintf("%s is not a finite number", c.name))
		}
		if !c.domain.Contains(v) {
			return invalid(deviceID, c.name, fmt.Sprintf("%s %g outside [%g, %g]", c.name, v, c.domain.Min, c.domain.Max))
		}
	}

	if (sample.Latitude == nil) != (sample.Longitude == nil) {
		return invalid(deviceID, "location", "latitude and longitude must be given together")
	}

	for name, v := range sample.Metrics {
		if name == "" {
			return invalid(deviceID, "metrics", "metric name is empty")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(deviceID, name, fmt.Sprintf("%s is not a finite number", name))
		}
	}
	return nil
}

// Latest returns the most recent reading of a device, or
// repository.ErrReadingNotFound when it has none.
func (s *Store) Latest(ctx context.Context, deviceID string) (*entities.Reading, error) {
	return s.readings.Latest(ctx, deviceID)
}

// Recent returns up to limit readings of a device, newest first. A
// non-positive limit uses the configured list limit.
func (s *Store) Recent(ctx context.Context, deviceID string, limit int) ([]entities.Reading, error) {
	if _, err := s.devices.Device(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, unknownDevice(deviceID)
		}
		return nil, err
	}
	return s.readings.ListNewest(ctx, deviceID, s.boundList(limit))
}

// RecentAll returns up to limit readings across all devices, newest first.
func (s *Store) RecentAll(ctx context.Context, limit int) ([]entities.Reading, error) {
	return s.readings.ListNewest(ctx, "", s.boundList(limit))
}

func (s *Store) boundList(limit int) int {
	if limit <= 0 || limit > s.listLimit*10 {
		return s.listLimit
	}
	return limit
}

// History returns the readings of a device within w in ascending capture
// order. Pages are fetched as the sequence is ranged over; ranging again
// starts over. A failed page is yielded as an error and ends the sequence.
func (s *Store) History(ctx context.Context, deviceID string, w Window) iter.Seq2[*entities.Reading, error] {
	return func(yield func(*entities.Reading, error) bool) {
		remaining := w.Limit
		if remaining <= 0 && w.From.IsZero() && w.To.IsZero() {
			remaining = s.historyLimit
		}

		page := repository.ReadingPage{From: w.From, To: w.To}

		// A count without a lower bound takes the newest readings, so the
		// scan starts at the remaining-th newest one.
		if remaining > 0 && w.From.IsZero() {
			start, err := s.readings.NthNewest(ctx, deviceID, remaining, w.To)
			switch {
			case err == nil:
				page.AfterTimestamp = start.ReadingTimestamp
				page.AfterID = start.ID
				page.Inclusive = true
			case errors.Is(err, repository.ErrReadingNotFound):
			default:
				yield(nil, err)
				return
			}
		}

		// An open-ended range stops at the newest reading present when the
		// scan began.
		var stop *entities.Reading
		if remaining <= 0 && w.To.IsZero() {
			latest, err := s.readings.Latest(ctx, deviceID)
			switch {
			case err == nil:
				stop = latest
			case errors.Is(err, repository.ErrReadingNotFound):
				return
			default:
				yield(nil, err)
				return
			}
		}

		for {
			size := s.pageSize
			if remaining > 0 && remaining < size {
				size = remaining
			}
			page.Limit = size

			batch, err := s.readings.Page(ctx, deviceID, page)
			if err != nil {
				yield(nil, err)
				return
			}

			for i := range batch {
				r := &batch[i]
				if stop != nil && after(r, stop) {
					return
				}
				if !yield(r, nil) {
					return
				}
			}

			if remaining > 0 {
				remaining -= len(batch)
				if remaining <= 0 {
					return
				}
			}
			if len(batch) < size {
				return
			}

			last := &batch[len(batch)-1]
			page.AfterTimestamp = last.ReadingTimestamp
			page.AfterID = last.ID
			page.Inclusive = false
		}
	}
}

// after reports whether a sorts after b in ledger order.
func after(a, b *entities.Reading) bool {
	if a.ReadingTimestamp.Equal(b.ReadingTimestamp) {
		return a.ID > b.ID
	}
	return a.ReadingTimestamp.After(b.ReadingTimestamp)
}

func invalid(deviceID, field, msg string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrInvalidReading, msg)).
		Component("readings").
		Category(errors.CategoryValidation).
		DeviceContext(deviceID).
		Context("field", field).
		Build()
}

func unknownDevice(deviceID string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)).
		Component("readings").
		Category(errors.CategoryNotFound).
		DeviceContext(deviceID).
		Build()
}
