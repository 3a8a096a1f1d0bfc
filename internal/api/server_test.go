package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarawakflora/fieldwatch/internal/alerting"
	v1 "github.com/sarawakflora/fieldwatch/internal/api/v1"
	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/dashboard"
	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
	"github.com/sarawakflora/fieldwatch/internal/readings"
	"github.com/sarawakflora/fieldwatch/internal/registry"
)

func newTestServer(t *testing.T, settings *conf.Settings) (*Server, *observability.Metrics) {
	t.Helper()

	store := datastore.NewSeededTestStore(t)
	reg := registry.New(store.Devices, store.Species, time.Minute)
	ledger := readings.NewStore(store.Readings, reg)
	manager := alerting.NewManager(store.Alerts, store.Readings, reg)
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	s, err := New(settings, &v1.Dependencies{
		Store:     store,
		Registry:  reg,
		Ledger:    ledger,
		Alerts:    manager,
		Ingestor:  pipeline.NewIngestor(ledger, manager),
		Dashboard: dashboard.New(reg, ledger, store.Alerts, dashboard.Counters{Species: store.Species, Observations: store.Observations, Devices: store.Devices, Alerts: store.Alerts, Readings: store.Readings}, nil),
		Metrics:   m,
	}, WithLogger(logger.NewDiscardLogger()))
	require.NoError(t, err)
	return s, m
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{}
	s.WebServer.Port = "9090"
	s.WebServer.BasePath = "/fieldwatch/"
	s.Debug = true

	cfg := ConfigFromSettings(s)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, "/fieldwatch", cfg.BasePath)
	assert.True(t, cfg.Debug)
	assert.Equal(t, logger.LogLevelDebug, cfg.LogLevel)
	require.NoError(t, cfg.Validate())

	cfg.BasePath = "fieldwatch"
	require.Error(t, cfg.Validate())

	empty := DefaultConfig()
	empty.Port = ""
	require.Error(t, empty.Validate())
}

func TestConfigAutoTLS(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{}
	s.WebServer.Port = "443"
	s.WebServer.AutoTLS = true
	s.WebServer.TLSHost = "fieldwatch.example.org"
	s.WebServer.TLSCacheDir = t.TempDir()

	cfg := ConfigFromSettings(s)
	assert.True(t, cfg.AutoTLS)
	assert.Equal(t, "fieldwatch.example.org", cfg.TLSHost)
	require.NoError(t, cfg.Validate())
	assert.Contains(t, cfg.String(), "auto_tls=true")

	cfg.TLSHost = ""
	require.Error(t, cfg.Validate())
}

func TestServerRecordsRequestMetrics(t *testing.T) {
	t.Parallel()
	s, m := newTestServer(t, &conf.Settings{})

	for _, path := range []string{"/species", "/species", "/sensor-devices/DEV-999"} {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		assert.NotEqual(t, http.StatusInternalServerError, rec.Code)
	}

	assert.InDelta(t, 2, m.HTTP.RequestCount(http.MethodGet, "/species", http.StatusOK), 0)
	assert.InDelta(t, 1, m.HTTP.RequestCount(http.MethodGet, "/sensor-devices/:id", http.StatusNotFound), 0)
}

func TestServerSecurityHeaders(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &conf.Settings{})

	req := httptest.NewRequest(http.MethodOptions, "/alerts", http.NoBody)
	req.Header.Set("Origin", "https://dashboard.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "X-Viewer-Role")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Viewer-Role")

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/species", http.NoBody))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestServerStartAndShutdown(t *testing.T) {
	t.Parallel()
	settings := &conf.Settings{}
	settings.WebServer.Port = "0"
	s, _ := newTestServer(t, settings)

	s.Start()
	require.NoError(t, s.Shutdown())
}
