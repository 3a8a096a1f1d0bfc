package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
)

func newMockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	c := NewClient("http://fieldwatch.test/api/", time.Second)
	mt := httpmock.NewMockTransport()
	c.HTTPClient().Transport = mt
	return c, mt
}

func TestClientSend(t *testing.T) {
	t.Parallel()
	c, mt := newMockedClient(t)

	var got pipeline.Payload
	mt.RegisterResponder(http.MethodPost, "http://fieldwatch.test/api/sensor-data",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"message": "Sensor reading stored", "id": 42, "alerts_opened": 1, "evaluated": true,
			})
		})

	soil := 12.5
	ack, err := c.Send(context.Background(), &pipeline.Payload{DeviceID: "DEV-001", SoilMoisture: &soil})
	require.NoError(t, err)
	assert.EqualValues(t, 42, ack.ID)
	assert.Equal(t, 1, ack.AlertsOpened)
	assert.True(t, ack.Evaluated)
	assert.Equal(t, "DEV-001", got.DeviceID)
	assert.InDelta(t, 12.5, *got.SoilMoisture, 0)
}

func TestClientSendRejected(t *testing.T) {
	t.Parallel()
	c, mt := newMockedClient(t)

	mt.RegisterResponder(http.MethodPost, "http://fieldwatch.test/api/sensor-data",
		httpmock.NewJsonResponderOrPanic(http.StatusNotFound, map[string]any{
			"error": "device not found", "type": "UnknownDevice", "code": 404,
		}))

	_, err := c.Send(context.Background(), &pipeline.Payload{DeviceID: "DEV-999"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device not found")
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestGeneratorDeterministic(t *testing.T) {
	t.Parallel()

	a := NewGenerator(7, 0.5)
	b := NewGenerator(7, 0.5)
	for range 20 {
		pa, pb := a.Next("DEV-001"), b.Next("DEV-001")
		assert.Equal(t, *pa.Temperature, *pb.Temperature)
		assert.Equal(t, *pa.SoilMoisture, *pb.SoilMoisture)
		assert.Equal(t, pa.MotionDetected, pb.MotionDetected)
	}
}

func TestGeneratorStaysInBandWithoutBreaches(t *testing.T) {
	t.Parallel()

	g := NewGenerator(1, 0)
	for range 200 {
		p := g.Next("DEV-014")
		assert.GreaterOrEqual(t, *p.Temperature, 24.0)
		assert.LessOrEqual(t, *p.Temperature, 32.0)
		assert.LessOrEqual(t, *p.Humidity, 90.0)
		assert.GreaterOrEqual(t, *p.SoilMoisture, 30.0)
		assert.False(t, bool(p.MotionDetected))
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	c, mt := newMockedClient(t)

	var (
		mu     sync.Mutex
		counts = map[string]int{}
	)
	mt.RegisterResponder(http.MethodPost, "http://fieldwatch.test/api/sensor-data",
		func(req *http.Request) (*http.Response, error) {
			var p pipeline.Payload
			if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
				return nil, err
			}
			mu.Lock()
			counts[p.DeviceID]++
			mu.Unlock()
			if p.DeviceID == "DEV-404" {
				return httpmock.NewJsonResponse(http.StatusNotFound, map[string]any{"error": "device not found"})
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"id": 1, "alerts_resolved": 1})
		})

	sum, err := Run(context.Background(), c, Config{
		Devices:  []string{"DEV-001", "DEV-404"},
		Rounds:   3,
		Interval: time.Millisecond,
		Seed:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Sent: 3, Failed: 3, AlertsResolved: 3}, sum)
	assert.Equal(t, map[string]int{"DEV-001": 3, "DEV-404": 3}, counts)
}

func TestRunRequiresDevices(t *testing.T) {
	t.Parallel()
	_, err := Run(context.Background(), NewClient("http://localhost", time.Second), Config{})
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := Run(ctx, NewClient("http://localhost", time.Second), Config{
		Devices:  []string{"DEV-001"},
		Interval: time.Hour,
	})
	require.NoError(t, err)
	assert.Zero(t, sum)
}
