package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sarawakflora/fieldwatch/internal/alerting"
	v1 "github.com/sarawakflora/fieldwatch/internal/api/v1"
	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/dashboard"
	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/observability"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
	"github.com/sarawakflora/fieldwatch/internal/readings"
	"github.com/sarawakflora/fieldwatch/internal/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

type fixture struct {
	echo  *echo.Echo
	store *datastore.Store
}

func newFixture(t *testing.T, mutate ...func(*conf.Settings)) *fixture {
	t.Helper()

	settings := &conf.Settings{}
	settings.Privacy.CoarseGrid = 0.5
	for _, fn := range mutate {
		fn(settings)
	}

	store := datastore.NewSeededTestStore(t)
	reg := registry.New(store.Devices, store.Species, time.Minute)
	ledger := readings.NewStore(store.Readings, reg)
	manager := alerting.NewManager(store.Alerts, store.Readings, reg,
		alerting.WithRetry(alerting.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}))
	policy := privacy.PolicyFromSettings(&settings.Privacy)
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	e := echo.New()
	v1.New(e, settings, &v1.Dependencies{
		Store:    store,
		Registry: reg,
		Ledger:   ledger,
		Alerts:   manager,
		Ingestor: pipeline.NewIngestor(ledger, manager),
		Dashboard: dashboard.New(reg, ledger, store.Alerts, dashboard.Counters{
			Species:      store.Species,
			Observations: store.Observations,
			Devices:      store.Devices,
			Alerts:       store.Alerts,
			Readings:     store.Readings,
		}, policy),
		Policy:  policy,
		Metrics: m,
	})
	return &fixture{echo: e, store: store}
}

var operator = map[string]string{"X-Viewer-Role": "operator"}

func (fx *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSensorDataOpensAndResolvesAlert(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/sensor-data",
		`{"device_id":"DEV-001","temperature":26,"humidity":80,"soil_moisture":15,"motion_detected":0}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ack := decode[v1.SensorDataResponse](t, rec)
	assert.Equal(t, "Sensor reading stored", ack.Message)
	assert.NotZero(t, ack.ID)
	assert.Equal(t, 1, ack.AlertsOpened)
	assert.True(t, ack.Evaluated)

	rec = fx.do(t, http.MethodGet, "/alerts?status=open&device_id=DEV-001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	open := decode[[]entities.Alert](t, rec)
	require.Len(t, open, 1)
	assert.Equal(t, "Soil moisture 15.0% below safe minimum 20.0% (DEV-001)", open[0].Message)
	assert.Equal(t, entities.SeverityHigh, open[0].Severity)

	path := "/alerts/" + itoa(open[0].ID) + "/resolve"
	rec = fx.do(t, http.MethodPatch, path, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, v1.TypeForbidden, decode[v1.ErrorResponse](t, rec).Type)

	for range 2 {
		rec = fx.do(t, http.MethodPatch, path, "", operator)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resolved := decode[v1.AlertResolvedResponse](t, rec)
		assert.Equal(t, "Alert resolved", resolved.Message)
		assert.True(t, resolved.Alert.IsResolved)
	}

	rec = fx.do(t, http.MethodGet, "/alerts?status=open", "", nil)
	assert.Empty(t, decode[[]entities.Alert](t, rec))
}

func TestSensorDataErrors(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	tests := []struct {
		name string
		body string
		code int
		typ  string
	}{
		{"unknown device", `{"device_id":"DEV-999","soil_moisture":40}`, http.StatusNotFound, v1.TypeUnknownDevice},
		{"humidity out of range", `{"device_id":"DEV-001","humidity":140}`, http.StatusBadRequest, v1.TypeInvalidReading},
		{"missing device", `{"soil_moisture":40}`, http.StatusBadRequest, v1.TypeInvalidReading},
		{"malformed json", `{"device_id":`, http.StatusBadRequest, v1.TypeInvalidReading},
		{"non-numeric metric", `{"device_id":"DEV-001","temperature":"hot"}`, http.StatusBadRequest, v1.TypeInvalidReading},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fx.do(t, http.MethodPost, "/sensor-data", tt.body, nil)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			resp := decode[v1.ErrorResponse](t, rec)
			assert.Equal(t, tt.typ, resp.Type)
			assert.Equal(t, tt.code, resp.Code)
			assert.Len(t, resp.CorrelationID, 8)
		})
	}

	count, err := fx.store.Readings.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOperatorTokenRequired(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, func(s *conf.Settings) { s.WebServer.OperatorToken = "s3cret" })

	rec := fx.do(t, http.MethodPost, "/alerts/device/DEV-001/resolve-all", "", operator)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodPost, "/alerts/device/DEV-001/resolve-all", "", map[string]string{
		"X-Viewer-Role": "operator",
		"Authorization": "Bearer wrong",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodPost, "/alerts/device/DEV-001/resolve-all", "", map[string]string{
		"X-Viewer-Role": "operator",
		"Authorization": "Bearer s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, decode[v1.AlertsResolvedResponse](t, rec).Resolved)
}

func TestResolveAllForDevice(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/sensor-data",
		`{"device_id":"DEV-001","temperature":50,"soil_moisture":5}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2, decode[v1.SensorDataResponse](t, rec).AlertsOpened)

	rec = fx.do(t, http.MethodPost, "/alerts/device/DEV-001/resolve-all", "", operator)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[v1.AlertsResolvedResponse](t, rec)
	assert.Equal(t, 2, resp.Resolved)
	assert.Len(t, resp.Alerts, 2)

	rec = fx.do(t, http.MethodPost, "/alerts/device/DEV-999/resolve-all", "", operator)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, v1.TypeUnknownDevice, decode[v1.ErrorResponse](t, rec).Type)

	rec = fx.do(t, http.MethodGet, "/alerts/99999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, v1.TypeUnknownAlert, decode[v1.ErrorResponse](t, rec).Type)

	rec = fx.do(t, http.MethodGet, "/alerts?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceLocationProjection(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/sensor-devices/DEV-001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Bako")
	assert.NotContains(t, rec.Body.String(), "110.3333")
	public := decode[v1.DeviceResponse](t, rec)
	assert.Nil(t, public.Latitude)
	assert.True(t, public.LocationHidden)
	assert.Equal(t, "1.0°N 110.0°E (0.5° cell)", public.Region)

	rec = fx.do(t, http.MethodGet, "/sensor-devices/DEV-001", "", operator)
	require.Equal(t, http.StatusOK, rec.Code)
	op := decode[v1.DeviceResponse](t, rec)
	require.NotNil(t, op.Latitude)
	assert.InDelta(t, 1.4667, *op.Latitude, 1e-9)
	assert.Equal(t, "Bako National Park", op.LocationName)

	rec = fx.do(t, http.MethodGet, "/sensor-devices/DEV-020", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	visible := decode[v1.DeviceResponse](t, rec)
	assert.Equal(t, "Lambir Hills", visible.LocationName)
	assert.False(t, visible.LocationHidden)

	rec = fx.do(t, http.MethodGet, "/sensor-devices", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]v1.DeviceResponse](t, rec), 3)
	assert.NotContains(t, rec.Body.String(), "Santubong")
}

func TestReadingCoordinatesFollowDeviceMask(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/sensor-data",
		`{"device_id":"DEV-001","soil_moisture":40,"location_latitude":1.4668,"location_longitude":110.3334}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, path := range []string{"/sensor-readings", "/sensor-readings/device/DEV-001", "/sensor-readings/device/DEV-001/history"} {
		rec = fx.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		list := decode[[]entities.Reading](t, rec)
		require.Len(t, list, 1, path)
		assert.Nil(t, list[0].Latitude, path)

		rec = fx.do(t, http.MethodGet, path, "", operator)
		list = decode[[]entities.Reading](t, rec)
		require.Len(t, list, 1, path)
		require.NotNil(t, list[0].Latitude, path)
	}

	rec = fx.do(t, http.MethodGet, "/sensor-readings/device/DEV-999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = fx.do(t, http.MethodGet, "/sensor-readings?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = fx.do(t, http.MethodGet, "/sensor-readings/device/DEV-001/history?from=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceRegistrationAndUpdate(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	body := `{"device_id":"DEV-030","device_name":"Canopy Sensor D1","latitude":1.7,"longitude":110.4,"soil_moisture_min":25}`
	rec := fx.do(t, http.MethodPost, "/sensor-devices", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodPost, "/sensor-devices", body, operator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "DEV-030", decode[v1.MessageResponse](t, rec).ID)

	rec = fx.do(t, http.MethodPost, "/sensor-devices", body, operator)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = fx.do(t, http.MethodPost, "/sensor-devices", `{"device_id":"DEV-031","device_name":"X","humidity_min":90,"humidity_max":40}`, operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPut, "/sensor-devices/DEV-030", `{"motion_sensitive":true,"soil_moisture_max":70}`, operator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[v1.DeviceResponse](t, rec)
	assert.True(t, updated.MotionSensitive)
	assert.Equal(t, "Canopy Sensor D1", updated.Name)
	require.NotNil(t, updated.SoilMoistureMin)
	assert.InDelta(t, 25, *updated.SoilMoistureMin, 0)

	rec = fx.do(t, http.MethodPost, "/sensor-devices/DEV-030/deactivate", "", operator)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[v1.DeviceResponse](t, rec).IsActive)

	rec = fx.do(t, http.MethodPut, "/sensor-devices/DEV-999", `{"device_name":"ghost"}`, operator)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObservationsMasking(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/plant-observations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Bako")
	assert.NotContains(t, rec.Body.String(), "Santubong")
	assert.Contains(t, rec.Body.String(), "Sungai Sarawak riverbank")

	rec = fx.do(t, http.MethodGet, "/plant-observations", "", operator)
	assert.Contains(t, rec.Body.String(), "Bako National Park")

	rafflesia, err := fx.store.Species.GetByScientificName(context.Background(), "Rafflesia arnoldii")
	require.NoError(t, err)

	rec = fx.do(t, http.MethodPost, "/plant-observations",
		`{"user_id":7,"species_id":`+itoa(rafflesia.ID)+`,"location_latitude":1.41,"location_longitude":110.29,"location_name":"Bako ridge"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[v1.MessageResponse](t, rec)
	id := itoa(uint(created.ID.(float64)))

	rec = fx.do(t, http.MethodGet, "/plant-observations/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	obs := decode[v1.ObservationResponse](t, rec)
	assert.Equal(t, "Bako ridge", obs.LocationName)
	assert.Equal(t, entities.ObservationSourceCamera, obs.Source)
	assert.Equal(t, entities.ObservationStatusPending, obs.Status)

	rec = fx.do(t, http.MethodPatch, "/plant-observations/"+id+"/mask", `{"is_masked":true}`, operator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	masked := decode[v1.ObservationResponse](t, rec)
	assert.True(t, masked.IsMasked)
	assert.True(t, masked.Masked)

	rec = fx.do(t, http.MethodGet, "/plant-observations/"+id, "", nil)
	hidden := decode[v1.ObservationResponse](t, rec)
	assert.Nil(t, hidden.Latitude)
	assert.Empty(t, hidden.LocationName)
	assert.Equal(t, "1.0°N 110.0°E (0.5° cell)", hidden.Region)

	rec = fx.do(t, http.MethodPost, "/plant-observations", `{"species_id":9999,"latitude":1,"longitude":110}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = fx.do(t, http.MethodPost, "/plant-observations", `{"species_id":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpeciesEndpoints(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/species", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entities.Species](t, rec), 4)

	rec = fx.do(t, http.MethodPost, "/species", `{"scientific_name":"Nepenthes villosa","common_name":"Hairy Pitcher","is_endangered":true}`, operator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := itoa(uint(decode[v1.MessageResponse](t, rec).ID.(float64)))

	rec = fx.do(t, http.MethodGet, "/species/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hairy Pitcher", decode[entities.Species](t, rec).CommonName)

	rec = fx.do(t, http.MethodPost, "/species", `{"scientific_name":"Nepenthes villosa"}`, operator)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = fx.do(t, http.MethodGet, "/species/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = fx.do(t, http.MethodGet, "/species/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func findObservation(t *testing.T, fx *fixture, locationName string) *entities.Observation {
	t.Helper()
	list, err := fx.store.Observations.ListObservations(context.Background(), 0)
	require.NoError(t, err)
	for i := range list {
		if list[i].LocationName == locationName {
			return &list[i]
		}
	}
	t.Fatalf("no observation at %s", locationName)
	return nil
}

func TestUpdateObservation(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	bako := findObservation(t, fx, "Bako National Park")
	path := "/plant-observations/" + itoa(bako.ID)

	rec := fx.do(t, http.MethodPut, path, `{"status":"rejected"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodPut, path, `{"status":"approved","notes":"Confirmed by park ranger."}`, operator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[v1.ObservationResponse](t, rec)
	assert.Equal(t, "approved", out.Status)
	assert.Equal(t, "Confirmed by park ranger.", out.Notes)
	assert.Equal(t, "Bako National Park", out.LocationName, "operators see the location")

	rec = fx.do(t, http.MethodPut, path, `{"notes":"Second bloom expected in March."}`, operator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = decode[v1.ObservationResponse](t, rec)
	assert.Equal(t, "approved", out.Status, "absent fields are kept")
	assert.Equal(t, "Second bloom expected in March.", out.Notes)

	rec = fx.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	public := decode[v1.ObservationResponse](t, rec)
	assert.Equal(t, "approved", public.Status)
	assert.Nil(t, public.Latitude)
	assert.Empty(t, public.LocationName)

	rec = fx.do(t, http.MethodPut, path, `{"status":"  "}`, operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = fx.do(t, http.MethodPut, "/plant-observations/9999", `{"status":"approved"}`, operator)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = fx.do(t, http.MethodPut, "/plant-observations/abc", `{"status":"approved"}`, operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpeciesBecomingEndangeredMasksAtOnce(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	river := findObservation(t, fx, "Sungai Sarawak riverbank")
	obsPath := "/plant-observations/" + itoa(river.ID)

	rec := fx.do(t, http.MethodPatch, obsPath+"/mask", `{"is_masked":true}`, operator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// masked but not endangered: still public, and the species is now cached
	rec = fx.do(t, http.MethodGet, obsPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sungai Sarawak riverbank", decode[v1.ObservationResponse](t, rec).LocationName)

	speciesPath := "/species/" + itoa(river.SpeciesID)
	body := `{"scientific_name":"Shorea macrophylla","common_name":"Engkabang Jantong","is_endangered":true}`
	rec = fx.do(t, http.MethodPut, speciesPath, body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = fx.do(t, http.MethodPut, speciesPath, body, operator)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[entities.Species](t, rec)
	assert.True(t, updated.IsEndangered)
	assert.Equal(t, river.SpeciesID, updated.ID)

	rec = fx.do(t, http.MethodGet, obsPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hidden := decode[v1.ObservationResponse](t, rec)
	assert.Nil(t, hidden.Latitude)
	assert.Nil(t, hidden.Longitude)
	assert.Empty(t, hidden.LocationName)
	assert.NotEmpty(t, hidden.Region)

	rec = fx.do(t, http.MethodPut, "/species/9999", body, operator)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = fx.do(t, http.MethodPut, speciesPath, `{"scientific_name":"Rafflesia arnoldii"}`, operator)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = fx.do(t, http.MethodPut, speciesPath, `{"common_name":"No name"}`, operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardEndpoints(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/sensor-data", `{"device_id":"DEV-001","soil_moisture":15}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, "/dashboard/fleet", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fleet := decode[dashboard.FleetView](t, rec)
	require.Len(t, fleet.Alerting, 1)
	assert.Equal(t, "DEV-001", fleet.Alerting[0].Device.DeviceID)
	assert.Len(t, fleet.Nominal, 2)
	assert.NotContains(t, rec.Body.String(), "Bako")

	rec = fx.do(t, http.MethodGet, "/dashboard/fleet?filter=bako", "", nil)
	fleet = decode[dashboard.FleetView](t, rec)
	assert.Empty(t, fleet.Alerting)
	assert.Empty(t, fleet.Nominal)

	rec = fx.do(t, http.MethodGet, "/dashboard/fleet?filter=bako", "", operator)
	fleet = decode[dashboard.FleetView](t, rec)
	assert.Len(t, fleet.Alerting, 1)

	rec = fx.do(t, http.MethodGet, "/dashboard/devices/DEV-001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dashboard.DeviceView](t, rec)
	assert.Len(t, view.OpenAlerts, 1)
	assert.Nil(t, view.Location.Latitude)

	rec = fx.do(t, http.MethodGet, "/dashboard/devices/DEV-999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = fx.do(t, http.MethodGet, "/dashboard/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[dashboard.Stats](t, rec)
	assert.EqualValues(t, 4, stats.TotalSpecies)
	assert.EqualValues(t, 3, stats.ActiveDevices)
	assert.EqualValues(t, 1, stats.UnresolvedAlerts)
	assert.EqualValues(t, 1, stats.TotalReadings)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[v1.HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.DatabaseStatus)
	assert.Positive(t, health.System.NumCPU)

	rec = fx.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestBasePath(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, func(s *conf.Settings) { s.WebServer.BasePath = "/api/" })

	rec := fx.do(t, http.MethodGet, "/api/species", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = fx.do(t, http.MethodGet, "/species", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
