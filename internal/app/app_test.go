package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sarawakflora/fieldwatch/internal/alerting"
	"github.com/sarawakflora/fieldwatch/internal/buildinfo"
	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/evaluator"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Main.Name = "fieldwatch-test"
	s.Database.Type = "sqlite"
	s.Database.SQLite.Path = filepath.Join(t.TempDir(), "fieldwatch.db")
	s.WebServer.Enabled = true
	s.WebServer.Port = "0"
	s.Privacy.CoarseGrid = 0.5
	s.Registry.CacheTTL = time.Minute
	s.Alerting.Reevaluate.Enabled = true
	s.Alerting.Reevaluate.Interval = time.Hour
	return s
}

func TestAppLifecycle(t *testing.T) {
	ctx := context.Background()
	a, err := New(testSettings(t), buildinfo.NewContext("v0.0.1", "", "test"))
	require.NoError(t, err)
	require.NotNil(t, a.Server)

	seed, err := datastore.LoadSeed("")
	require.NoError(t, err)
	_, err = seed.Apply(ctx, a.Store)
	require.NoError(t, err)

	require.NoError(t, a.Start(ctx))

	soil := 15.0
	res, err := a.Ingestor.Ingest(ctx, pipeline.SourceHTTP, &pipeline.Payload{DeviceID: "DEV-001", SoilMoisture: &soil})
	require.NoError(t, err)
	require.NotNil(t, res.Outcome)
	assert.Len(t, res.Outcome.Opened, 1)

	a.Stop()
}

func defaultBands(s *conf.Settings, humidityMax float64) {
	s.Alerting.Thresholds.Temperature = conf.BandSettings{Min: 15, Max: 35}
	s.Alerting.Thresholds.Humidity = conf.BandSettings{Min: 40, Max: humidityMax}
	s.Alerting.Thresholds.SoilMoisture = conf.BandSettings{Min: 20, Max: 80}
}

func TestApplySettingsSwapsPolicy(t *testing.T) {
	s := testSettings(t)
	s.WebServer.Enabled = false
	s.Alerting.Reevaluate.Enabled = false
	defaultBands(s, 99)
	a, err := New(s, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Server)
	defer a.Stop()

	ctx := context.Background()
	seed, err := datastore.LoadSeed("")
	require.NoError(t, err)
	_, err = seed.Apply(ctx, a.Store)
	require.NoError(t, err)

	humidity := 97.0
	res, err := a.Ingestor.Ingest(ctx, pipeline.SourceHTTP, &pipeline.Payload{DeviceID: "DEV-020", Humidity: &humidity})
	require.NoError(t, err)
	assert.Empty(t, res.Outcome.Opened)

	reloaded := testSettings(t)
	defaultBands(reloaded, 90)
	a.ApplySettings(reloaded)

	res, err = a.Ingestor.Ingest(ctx, pipeline.SourceHTTP, &pipeline.Payload{DeviceID: "DEV-020", Humidity: &humidity})
	require.NoError(t, err)
	require.Len(t, res.Outcome.Opened, 1)
	assert.Equal(t, string(evaluator.Humidity), res.Outcome.Opened[0].AlertType)
	assert.False(t, res.Outcome.Opened[0].IsResolved)
}

func TestNewRejectsBadPushURL(t *testing.T) {
	s := testSettings(t)
	s.Notification.Push.Enabled = true
	s.Notification.Push.URLs = []string{"nosuchservice://x"}

	_, err := New(s, nil)
	require.Error(t, err)
}

func TestEvaluationBudget(t *testing.T) {
	t.Parallel()

	retry := alerting.RetryConfig{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}
	assert.Equal(t, 5*time.Second+3*(5*time.Second+100*time.Millisecond), evaluationBudget(5*time.Second, retry))
	assert.Zero(t, evaluationBudget(0, retry))

	retry.MaxAttempts = 0
	assert.Equal(t, 2*time.Second+100*time.Millisecond, evaluationBudget(time.Second, retry))
}
