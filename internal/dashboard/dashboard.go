// Package dashboard builds the composite device and fleet views polled by
// operator displays. Views are computed from scratch on every call; nothing
// is cached and nothing is written, so overlapping polls are harmless.
//
// Every location in a view goes through the privacy policy, so a view
// built for a public viewer never carries masked coordinates.
package dashboard

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
)

// ErrUnknownDevice is returned for device views of unregistered devices.
var ErrUnknownDevice = repository.ErrDeviceNotFound

// Registry resolves devices and their species.
type Registry interface {
	Device(ctx context.Context, deviceID string) (*entities.Device, error)
	Devices(ctx context.Context, activeOnly bool) ([]entities.Device, error)
	SpeciesOf(ctx context.Context, device *entities.Device) (*entities.Species, error)
}

// LatestReader returns the newest reading of a device.
type LatestReader interface {
	Latest(ctx context.Context, deviceID string) (*entities.Reading, error)
}

// Counters are the repositories Stats counts.
type Counters struct {
	Species      repository.SpeciesRepository
	Observations repository.ObservationRepository
	Devices      repository.DeviceRepository
	Alerts       repository.AlertRepository
	Readings     repository.ReadingRepository
}

// Aggregator joins devices, readings, alerts and the masking policy.
type Aggregator struct {
	registry Registry
	readings LatestReader
	alerts   repository.AlertRepository
	counters Counters
	policy   *privacy.Policy
	now      func() time.Time
}

// New creates an Aggregator.
func New(registry Registry, readings LatestReader, alerts repository.AlertRepository, counters Counters, policy *privacy.Policy) *Aggregator {
	if policy == nil {
		policy = privacy.NewPolicy(privacy.DefaultCoarseGrid)
	}
	return &Aggregator{
		registry: registry,
		readings: readings,
		alerts:   alerts,
		counters: counters,
		policy:   policy,
		now:      time.Now,
	}
}

// DeviceSummary is the part of a device every viewer may see. The
// registered location is only exposed through DeviceView.Location.
type DeviceSummary struct {
	DeviceID        string `json:"device_id"`
	NodeID          string `json:"node_id,omitempty"`
	Name            string `json:"device_name"`
	IsActive        bool   `json:"is_active"`
	MotionSensitive bool   `json:"motion_sensitive"`
	SpeciesID       *uint  `json:"species_id,omitempty"`
}

// SpeciesSummary names the species a device monitors.
type SpeciesSummary struct {
	ID             uint   `json:"species_id"`
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name"`
	IsEndangered   bool   `json:"is_endangered"`
}

// DeviceView is the dashboard view of one device.
type DeviceView struct {
	Device        DeviceSummary             `json:"device"`
	Species       *SpeciesSummary           `json:"species,omitempty"`
	LatestReading *entities.Reading         `json:"latest_reading,omitempty"`
	OpenAlerts    []entities.Alert          `json:"open_alerts"`
	Location      privacy.ProjectedLocation `json:"location"`
}

// Alerting reports whether the device has open alerts.
func (v *DeviceView) Alerting() bool {
	return len(v.OpenAlerts) > 0
}

// FleetView partitions device views into alerting and nominal groups.
type FleetView struct {
	Alerting    []DeviceView `json:"alerting"`
	Nominal     []DeviceView `json:"nominal"`
	Filter      string       `json:"filter,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Stats are the fleet-wide totals.
type Stats struct {
	TotalSpecies      int64 `json:"totalSpecies"`
	TotalObservations int64 `json:"totalObservations"`
	ActiveDevices     int64 `json:"activeDevices"`
	UnresolvedAlerts  int64 `json:"unresolvedAlerts"`
	TotalReadings     int64 `json:"totalReadings"`
}

// BuildDeviceView returns the view of one device as viewer may see it.
func (a *Aggregator) BuildDeviceView(ctx context.Context, deviceID string, viewer privacy.Viewer) (*DeviceView, error) {
	device, err := a.registry.Device(ctx, deviceID)
	if errors.Is(err, repository.ErrDeviceNotFound) {
		return nil, errors.New(fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)).
			Component("dashboard").
			Category(errors.CategoryNotFound).
			DeviceContext(deviceID).
			Build()
	}
	if err != nil {
		return nil, err
	}

	open, err := a.alerts.OpenAlerts(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return a.deviceView(ctx, device, open, viewer)
}

func (a *Aggregator) deviceView(ctx context.Context, device *entities.Device, open []entities.Alert, viewer privacy.Viewer) (*DeviceView, error) {
	species, err := a.registry.SpeciesOf(ctx, device)
	if err != nil && !errors.Is(err, repository.ErrSpeciesNotFound) {
		return nil, err
	}
	subject := privacy.DeviceSubject(device, species)

	view := &DeviceView{
		Device: DeviceSummary{
			DeviceID:        device.DeviceID,
			NodeID:          device.NodeID,
			Name:            device.Name,
			IsActive:        device.IsActive,
			MotionSensitive: device.MotionSensitive,
			SpeciesID:       device.SpeciesID,
		},
		OpenAlerts: open,
		Location:   a.policy.Project(subject, viewer),
	}
	if view.OpenAlerts == nil {
		view.OpenAlerts = []entities.Alert{}
	}
	if species != nil {
		view.Species = &SpeciesSummary{
			ID:             species.ID,
			ScientificName: species.ScientificName,
			CommonName:     species.CommonName,
			IsEndangered:   species.IsEndangered,
		}
	}

	latest, err := a.readings.Latest(ctx, device.DeviceID)
	switch {
	case errors.Is(err, repository.ErrReadingNotFound):
	case err != nil:
		return nil, err
	default:
		view.LatestReading = a.policy.ProjectReading(latest, subject, viewer)
	}
	return view, nil
}

// BuildFleetView returns every registered device, split into devices with
// open alerts and nominal ones, each group sorted by display name then id.
// A non-empty filter keeps devices whose name, id, species names or visible
// location name contain it, compared with Unicode case folding.
func (a *Aggregator) BuildFleetView(ctx context.Context, filter string, viewer privacy.Viewer) (*FleetView, error) {
	devices, err := a.registry.Devices(ctx, false)
	if err != nil {
		return nil, err
	}
	open, err := a.alerts.ListAlerts(ctx, repository.AlertFilter{Status: repository.AlertStatusOpen})
	if err != nil {
		return nil, err
	}

	// ListAlerts is newest first; device views list alerts oldest first.
	byDevice := make(map[string][]entities.Alert)
	for i := len(open) - 1; i >= 0; i-- {
		byDevice[open[i].DeviceID] = append(byDevice[open[i].DeviceID], open[i])
	}

	fleet := &FleetView{
		Alerting:    []DeviceView{},
		Nominal:     []DeviceView{},
		Filter:      filter,
		GeneratedAt: a.now().UTC(),
	}
	needle := fold(strings.TrimSpace(filter))

	for i := range devices {
		view, err := a.deviceView(ctx, &devices[i], byDevice[devices[i].DeviceID], viewer)
		if err != nil {
			return nil, err
		}
		if needle != "" && !matches(view, needle) {
			continue
		}
		if view.Alerting() {
			fleet.Alerting = append(fleet.Alerting, *view)
		} else {
			fleet.Nominal = append(fleet.Nominal, *view)
		}
	}

	slices.SortFunc(fleet.Alerting, byDisplayName)
	slices.SortFunc(fleet.Nominal, byDisplayName)

	GetLogger().Trace("fleet view built",
		logger.Int("devices", len(devices)),
		logger.Int("alerting", len(fleet.Alerting)),
		logger.Int("nominal", len(fleet.Nominal)),
		logger.String("viewer", string(viewer)))
	return fleet, nil
}

// Stats returns the fleet-wide totals.
func (a *Aggregator) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { s.TotalSpecies, err = a.counters.Species.Count(ctx); return })
	g.Go(func() (err error) { s.TotalObservations, err = a.counters.Observations.Count(ctx); return })
	g.Go(func() (err error) { s.ActiveDevices, err = a.counters.Devices.CountActive(ctx); return })
	g.Go(func() (err error) { s.UnresolvedAlerts, err = a.counters.Alerts.CountUnresolved(ctx); return })
	g.Go(func() (err error) { s.TotalReadings, err = a.counters.Readings.Count(ctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}

func byDisplayName(a, b DeviceView) int {
	if c := cmp.Compare(fold(a.Device.Name), fold(b.Device.Name)); c != 0 {
		return c
	}
	return cmp.Compare(a.Device.DeviceID, b.Device.DeviceID)
}

func matches(v *DeviceView, needle string) bool {
	fields := []string{v.Device.Name, v.Device.DeviceID, v.Location.LocationName}
	if v.Species != nil {
		fields = append(fields, v.Species.CommonName, v.Species.ScientificName)
	}
	for _, field := range fields {
		if field != "" && strings.Contains(fold(field), needle) {
			return true
		}
	}
	return false
}

// fold applies Unicode case folding. A cases.Caser is stateful, so each
// call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
