package readings_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/readings"
	"github.com/sarawakflora/fieldwatch/internal/registry"
)

var t0 = time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func newLedger(t *testing.T, settings *conf.ReadingsSettings) *readings.Store {
	t.Helper()
	store := datastore.NewSeededTestStore(t)
	reg := registry.New(store.Devices, store.Species, time.Minute)
	return readings.NewStore(store.Readings, reg,
		readings.WithSettings(settings),
		readings.WithClock(func() time.Time { return t0 }))
}

// fill appends n readings one minute apart starting at t0.
func fill(t *testing.T, ledger *readings.Store, deviceID string, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := range n {
		r, err := ledger.Append(context.Background(), deviceID, &readings.Sample{
			Timestamp:    t0.Add(time.Duration(i) * time.Minute),
			SoilMoisture: f(float64(i)),
		})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	return ids
}

func collect(t *testing.T, seq func(func(*entities.Reading, error) bool)) []uint {
	t.Helper()
	var ids []uint
	for r, err := range seq {
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	return ids
}

func TestAppendAssignsTimestampAndDefaults(t *testing.T) {
	t.Parallel()

	ledger := newLedger(t, nil)
	r, err := ledger.Append(context.Background(), "DEV-001", &readings.Sample{
		Temperature: f(24.5), Humidity: f(80), SoilMoisture: f(35),
	})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.True(t, r.ReadingTimestamp.Equal(t0))
	assert.Equal(t, entities.ReadingStatusOK, r.ReadingStatus)
	assert.False(t, r.Evaluated)

	latest, err := ledger.Latest(context.Background(), "DEV-001")
	require.NoError(t, err)
	assert.Equal(t, r.ID, latest.ID)
}

func TestAppendRejections(t *testing.T) {
	t.Parallel()

	ledger := newLedger(t, nil)
	ctx := context.Background()

	_, err := ledger.Append(ctx, "DEV-404", &readings.Sample{Temperature: f(20)})
	require.ErrorIs(t, err, readings.ErrUnknownDevice)
	assert.True(t, errors.IsNotFound(err))

	tests := []struct {
		name   string
		sample readings.Sample
	}{
		{"nan temperature", readings.Sample{Temperature: f(math.NaN())}},
		{"infinite humidity", readings.Sample{Humidity: f(math.Inf(1))}},
		{"temperature above domain", readings.Sample{Temperature: f(120)}},
		{"negative soil moisture", readings.Sample{SoilMoisture: f(-1)}},
		{"humidity above 100", readings.Sample{Humidity: f(100.5)}},
		{"latitude without longitude", readings.Sample{Latitude: f(1.4)}},
		{"latitude out of range", readings.Sample{Latitude: f(91), Longitude: f(110)}},
		{"nan extension metric", readings.Sample{Metrics: map[string]float64{"lux": math.NaN()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.Append(ctx, "DEV-001", &tt.sample)
			require.ErrorIs(t, err, readings.ErrInvalidReading)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}

	_, err = ledger.Latest(ctx, "DEV-001")
	require.ErrorIs(t, err, repository.ErrReadingNotFound, "rejected samples must not be stored")
}

func TestAppendAcceptsDomainEdges(t *testing.T) {
	t.Parallel()

	ledger := newLedger(t, nil)
	_, err := ledger.Append(context.Background(), "DEV-014", &readings.Sample{
		Temperature: f(-60), Humidity: f(100), SoilMoisture: f(0),
		Latitude: f(1.595), Longitude: f(110.345),
		Metrics: map[string]float64{"lux": 12000},
	})
	require.NoError(t, err)
}

func TestHistoryCountWindowTakesNewestAscending(t *testing.T) {
	t.Parallel()

	ledger := newLedger(t, &conf.ReadingsSettings{HistoryLimit: 4, PageSize: 2, ListLimit: 10})
	ids := fill(t, ledger, "DEV-001", 7)
	ctx := context.Background()

	got := collect(t, ledger.History(ctx, "DEV-001", readings.Window{Limit: 3}))
	assert.Equal(t, ids[4:7], got)

	// Neither bound falls back to the default history limit.
	got = collect(t, ledger.History(ctx, "DEV-001", readings.Window{}))
	assert.Equal(t, ids[3:7], got)

	// Limit before To.
	got = collect(t, ledger.History(ctx, "DEV-001", readings.Window{To: t0.Add(3 * time.Minute), Limit: 2}))
	assert.Equal(t, ids[1:3], got)

	// Fewer readings than requested yields all of them.
	got = collect(t, ledger.History(ctx, "DEV-001", readings.Window{Limit: 50}))
	assert.Equal(t, ids, got)
}

func TestHistoryRangeWindow(t *testing.T) {
	t.Parallel()

	ledger := newLedger(t, &conf.ReadingsSettings{HistoryLimit: 2, PageSize: 2, ListLimit: 10})
	ids := fill(t, ledger, "DEV-001", 6)
	fill(t, ledger, "DEV-014", 3)
	ctx := context.Background()

	got := collect(t, ledger.History(ctx, "DEV-001", readings.Window{From: t0.Add(time.Minute), To: t0.Add(5 * time.Minute)}))
	assert.Equal(t, ids[1:5], got)

	got = collect(t, ledger.History(ctx, "DEV-001", readings.Window{From: t0.Add(2 * time.Minute)}))
	assert.Equal(t, ids[2:], got, "open-ended range is not cut by the default limit")

	got = collect(t, ledger.History(ctx, "DEV-001", readings.Window{From: t0, Limit: 3}))
	assert.Equal(t, ids[:3], got)

	got = collect(t, ledger.History(ctx, "DEV-020", readings.Window{From: t0}))
	assert.Empty(t, got)
}

func TestHistoryIsRestartableAndStoppable(t *testing.T) {
	t.Parallel()

	ledger := newLedger(t, &conf.ReadingsSettings{HistoryLimit: 10, PageSize: 2, ListLimit: 10})
	ids := fill(t, ledger, "DEV-001", 5)
	seq := ledger.History(context.Background(), "DEV-001", readings.Window{Limit: 5})

	first := collect(t, seq)
	second := collect(t, seq)
	assert.Equal(t, ids, first)
	assert.Equal(t, first, second)

	var seen int
	for range seq {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestRecent(t *testing.T) {
	t.Parallel()

	ledger := newLedger(t, &conf.ReadingsSettings{HistoryLimit: 10, PageSize: 2, ListLimit: 3})
	ids := fill(t, ledger, "DEV-001", 5)
	ctx := context.Background()

	recent, err := ledger.Recent(ctx, "DEV-001", 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[4], recent[0].ID)
	assert.Equal(t, ids[2], recent[2].ID)

	_, err = ledger.Recent(ctx, "DEV-404", 10)
	require.ErrorIs(t, err, readings.ErrUnknownDevice)

	all, err := ledger.RecentAll(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// deadlineReadings records the deadline CreateReading was called with.
type deadlineReadings struct {
	repository.ReadingRepository
	deadline time.Time
	bounded  bool
}

func (d *deadlineReadings) CreateReading(ctx context.Context, r *entities.Reading) error {
	d.deadline, d.bounded = ctx.Deadline()
	return d.ReadingRepository.CreateReading(ctx, r)
}

func TestAppendBoundsTheWrite(t *testing.T) {
	t.Parallel()

	store := datastore.NewSeededTestStore(t)
	reg := registry.New(store.Devices, store.Species, time.Minute)
	repo := &deadlineReadings{ReadingRepository: store.Readings}
	ledger := readings.NewStore(repo, reg, readings.WithStoreTimeout(time.Second))

	start := time.Now()
	_, err := ledger.Append(context.Background(), "DEV-001", &readings.Sample{SoilMoisture: f(35)})
	require.NoError(t, err)
	require.True(t, repo.bounded)
	assert.WithinDuration(t, start.Add(time.Second), repo.deadline, 500*time.Millisecond)
}
