package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
)

func ptr[T any](v T) *T { return &v }

var baseTime = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

func newDevice(t *testing.T, store *datastore.Store, id string) *entities.Device {
	t.Helper()
	dev := &entities.Device{DeviceID: id, Name: "Device " + id, IsActive: true}
	require.NoError(t, store.Devices.CreateDevice(context.Background(), dev))
	return dev
}

func addReading(t *testing.T, store *datastore.Store, deviceID string, ts time.Time, soil float64) *entities.Reading {
	t.Helper()
	r := &entities.Reading{DeviceID: deviceID, ReadingTimestamp: ts, SoilMoisture: ptr(soil)}
	require.NoError(t, store.Readings.CreateReading(context.Background(), r))
	return r
}

func TestDeviceRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := datastore.NewTestStore(t)

	newDevice(t, store, "DEV-002")
	newDevice(t, store, "DEV-001")

	err := store.Devices.CreateDevice(ctx, &entities.Device{DeviceID: "DEV-001", Name: "dup"})
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	_, err = store.Devices.GetDevice(ctx, "DEV-404")
	require.ErrorIs(t, err, repository.ErrDeviceNotFound)

	dev, err := store.Devices.GetDevice(ctx, "DEV-001")
	require.NoError(t, err)
	dev.Name = "Soil Monitor A1"
	dev.SoilMoistureMin = ptr(20.0)
	dev.LocationMasked = true
	require.NoError(t, store.Devices.UpdateDevice(ctx, dev))

	dev, err = store.Devices.GetDevice(ctx, "DEV-001")
	require.NoError(t, err)
	assert.Equal(t, "Soil Monitor A1", dev.Name)
	assert.True(t, dev.LocationMasked)
	require.NotNil(t, dev.SoilMoistureMin)

	require.ErrorIs(t, store.Devices.UpdateDevice(ctx, &entities.Device{DeviceID: "DEV-404", Name: "x"}), repository.ErrDeviceNotFound)

	dev, err = store.Devices.SetActive(ctx, "DEV-002", false)
	require.NoError(t, err)
	assert.False(t, dev.IsActive)

	active, err := store.Devices.ListDevices(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "DEV-001", active[0].DeviceID)

	all, err := store.Devices.ListDevices(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := store.Devices.CountActive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestReadingPagination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := datastore.NewTestStore(t)
	newDevice(t, store, "DEV-001")
	newDevice(t, store, "DEV-002")

	// Two readings share a timestamp to exercise the id tiebreak.
	var ids []uint
	for i, offset := range []time.Duration{0, time.Minute, time.Minute, 2 * time.Minute, 3 * time.Minute} {
		r := addReading(t, store, "DEV-001", baseTime.Add(offset), float64(30+i))
		ids = append(ids, r.ID)
	}
	addReading(t, store, "DEV-002", baseTime, 50)

	first, err := store.Readings.Page(ctx, "DEV-001", repository.ReadingPage{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[0], first[0].ID)
	assert.Equal(t, ids[1], first[1].ID)

	last := first[1]
	second, err := store.Readings.Page(ctx, "DEV-001", repository.ReadingPage{
		AfterTimestamp: last.ReadingTimestamp, AfterID: last.ID, Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, ids[2], second[0].ID)
	assert.Equal(t, ids[3], second[1].ID)

	inclusive, err := store.Readings.Page(ctx, "DEV-001", repository.ReadingPage{
		AfterTimestamp: last.ReadingTimestamp, AfterID: last.ID, Inclusive: true, Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, inclusive, 1)
	assert.Equal(t, last.ID, inclusive[0].ID)

	ranged, err := store.Readings.Page(ctx, "DEV-001", repository.ReadingPage{
		From: baseTime.Add(time.Minute), To: baseTime.Add(3 * time.Minute),
	})
	require.NoError(t, err)
	assert.Len(t, ranged, 3)

	nth, err := store.Readings.NthNewest(ctx, "DEV-001", 2, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, ids[3], nth.ID)

	_, err = store.Readings.NthNewest(ctx, "DEV-001", 6, time.Time{})
	require.ErrorIs(t, err, repository.ErrReadingNotFound)

	latest, err := store.Readings.Latest(ctx, "DEV-001")
	require.NoError(t, err)
	assert.Equal(t, ids[4], latest.ID)
	assert.Equal(t, entities.ReadingStatusOK, latest.ReadingStatus)

	_, err = store.Readings.Latest(ctx, "DEV-404")
	require.ErrorIs(t, err, repository.ErrReadingNotFound)

	newest, err := store.Readings.ListNewest(ctx, "", 3)
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, ids[4], newest[0].ID)

	total, err := store.Readings.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
}

func TestReadingRequiresKnownDevice(t *testing.T) {
	t.Parallel()

	store := datastore.NewTestStore(t)
	err := store.Readings.CreateReading(context.Background(), &entities.Reading{DeviceID: "DEV-404", ReadingTimestamp: baseTime})
	require.Error(t, err, "foreign key must reject readings of unknown devices")
}

func TestApplyTransitionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := datastore.NewTestStore(t)
	newDevice(t, store, "DEV-001")
	r1 := addReading(t, store, "DEV-001", baseTime, 15)

	res, err := store.Alerts.ApplyTransition(ctx, &repository.Transition{
		DeviceID: "DEV-001",
		Open: []*entities.Alert{{
			DeviceID: "DEV-001", ReadingID: r1.ID, AlertType: "SoilMoisture",
			Message: "low", Severity: entities.SeverityHigh,
		}},
		ReadingID: r1.ID,
	})
	require.NoError(t, err)
	require.Len(t, res.Opened, 1)
	opened := res.Opened[0]
	assert.NotZero(t, opened.ID)

	stored, err := store.Readings.GetReading(ctx, r1.ID)
	require.NoError(t, err)
	assert.True(t, stored.Evaluated)
	assert.True(t, stored.AlertGenerated)

	evaluatedAt, ok, err := store.Readings.NewestEvaluatedAt(ctx, "DEV-001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, evaluatedAt.Equal(baseTime))

	// A second open of the same condition loses the race and writes nothing.
	r2 := addReading(t, store, "DEV-001", baseTime.Add(time.Minute), 14)
	_, err = store.Alerts.ApplyTransition(ctx, &repository.Transition{
		DeviceID:  "DEV-001",
		Open:      []*entities.Alert{{DeviceID: "DEV-001", ReadingID: r2.ID, AlertType: "SoilMoisture", Message: "low"}},
		ReadingID: r2.ID,
	})
	require.ErrorIs(t, err, repository.ErrConcurrencyConflict)
	assert.True(t, errors.IsRetryable(err))

	stored, err = store.Readings.GetReading(ctx, r2.ID)
	require.NoError(t, err)
	assert.False(t, stored.Evaluated, "rolled back transition must not mark the reading")

	open, err := store.Alerts.OpenAlerts(ctx, "DEV-001")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	res, err = store.Alerts.ApplyTransition(ctx, &repository.Transition{
		DeviceID:   "DEV-001",
		Resolve:    []uint{opened.ID},
		ResolvedAt: baseTime.Add(2 * time.Minute),
		ResolvedBy: "ranger-7",
		Resolution: entities.ResolutionOperator,
	})
	require.NoError(t, err)
	require.Len(t, res.Resolved, 1)
	assert.True(t, res.Resolved[0].IsResolved)
	require.NotNil(t, res.Resolved[0].ResolvedBy)
	assert.Equal(t, "ranger-7", *res.Resolved[0].ResolvedBy)

	_, err = store.Alerts.ApplyTransition(ctx, &repository.Transition{
		DeviceID: "DEV-001", Resolve: []uint{opened.ID}, ResolvedAt: baseTime,
		Resolution: entities.ResolutionOperator,
	})
	require.ErrorIs(t, err, repository.ErrConcurrencyConflict)

	unresolved, err := store.Alerts.CountUnresolved(ctx)
	require.NoError(t, err)
	assert.Zero(t, unresolved)

	resolved, err := store.Alerts.ListAlerts(ctx, repository.AlertFilter{Status: repository.AlertStatusResolved})
	require.NoError(t, err)
	assert.Len(t, resolved, 1)

	_, err = store.Alerts.ListAlerts(ctx, repository.AlertFilter{Status: "pending"})
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = store.Alerts.GetAlert(ctx, 999)
	require.ErrorIs(t, err, repository.ErrAlertNotFound)
}

func TestObservationAndSpeciesRepositories(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := datastore.NewTestStore(t)

	sp := &entities.Species{ScientificName: "Rafflesia arnoldii", CommonName: "Corpse Flower", IsEndangered: true}
	require.NoError(t, store.Species.CreateSpecies(ctx, sp))

	obs := &entities.Observation{UserID: 1, SpeciesID: sp.ID, Latitude: 1.4667, Longitude: 110.3333}
	require.NoError(t, store.Observations.CreateObservation(ctx, obs))
	assert.Equal(t, entities.ObservationSourceCamera, obs.Source)
	assert.Equal(t, entities.ObservationStatusPending, obs.Status)

	masked, err := store.Observations.SetMasked(ctx, obs.ID, true)
	require.NoError(t, err)
	assert.True(t, masked.IsMasked)

	_, err = store.Observations.SetMasked(ctx, 999, true)
	require.ErrorIs(t, err, repository.ErrObservationNotFound)

	byName, err := store.Species.GetByScientificName(ctx, "Rafflesia arnoldii")
	require.NoError(t, err)
	assert.Equal(t, sp.ID, byName.ID)

	n, err := store.Observations.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUnknownSpeciesReference(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := datastore.NewTestStore(t)

	err := store.Devices.CreateDevice(ctx, &entities.Device{DeviceID: "DEV-900", Name: "Orphan", SpeciesID: ptr(uint(404))})
	require.ErrorIs(t, err, repository.ErrSpeciesNotFound)
	assert.NotErrorIs(t, err, repository.ErrDeviceNotFound)

	err = store.Observations.CreateObservation(ctx, &entities.Observation{SpeciesID: 404, Latitude: 1.5, Longitude: 110.3})
	require.ErrorIs(t, err, repository.ErrSpeciesNotFound)

	err = store.Readings.CreateReading(ctx, &entities.Reading{DeviceID: "DEV-404", ReadingTimestamp: baseTime})
	require.ErrorIs(t, err, repository.ErrDeviceNotFound)
}

func TestObservationAndSpeciesUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := datastore.NewTestStore(t)

	sp := &entities.Species{ScientificName: "Shorea macrophylla", CommonName: "Engkabang Jantong"}
	require.NoError(t, store.Species.CreateSpecies(ctx, sp))
	other := &entities.Species{ScientificName: "Nepenthes rajah"}
	require.NoError(t, store.Species.CreateSpecies(ctx, other))

	obs := &entities.Observation{UserID: 2, SpeciesID: sp.ID, Latitude: 1.55, Longitude: 110.35, Notes: "riverbank"}
	require.NoError(t, store.Observations.CreateObservation(ctx, obs))

	updated, err := store.Observations.UpdateObservation(ctx, obs.ID, repository.ObservationUpdate{Status: ptr("approved")})
	require.NoError(t, err)
	assert.Equal(t, "approved", updated.Status)
	assert.Equal(t, "riverbank", updated.Notes)

	updated, err = store.Observations.UpdateObservation(ctx, obs.ID, repository.ObservationUpdate{Notes: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "approved", updated.Status)
	assert.Empty(t, updated.Notes)

	_, err = store.Observations.UpdateObservation(ctx, obs.ID, repository.ObservationUpdate{Status: ptr("")})
	require.ErrorIs(t, err, repository.ErrInvalidInput)
	_, err = store.Observations.UpdateObservation(ctx, 999, repository.ObservationUpdate{Status: ptr("approved")})
	require.ErrorIs(t, err, repository.ErrObservationNotFound)

	changed, err := store.Species.UpdateSpecies(ctx, &entities.Species{
		ID:             sp.ID,
		ScientificName: "Shorea macrophylla",
		CommonName:     "Illipe Nut",
		IsEndangered:   true,
	})
	require.NoError(t, err)
	assert.True(t, changed.IsEndangered)
	assert.Equal(t, "Illipe Nut", changed.CommonName)
	assert.Equal(t, sp.CreatedAt.Unix(), changed.CreatedAt.Unix())

	changed, err = store.Species.UpdateSpecies(ctx, &entities.Species{ID: sp.ID, ScientificName: "Shorea macrophylla"})
	require.NoError(t, err)
	assert.False(t, changed.IsEndangered, "zero values are written")

	_, err = store.Species.UpdateSpecies(ctx, &entities.Species{ID: sp.ID, ScientificName: "Nepenthes rajah"})
	require.ErrorIs(t, err, repository.ErrDuplicateKey)
	_, err = store.Species.UpdateSpecies(ctx, &entities.Species{ID: 999, ScientificName: "Unknown"})
	require.ErrorIs(t, err, repository.ErrSpeciesNotFound)
	_, err = store.Species.UpdateSpecies(ctx, &entities.Species{ID: sp.ID})
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}
