package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/events"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
	"github.com/sarawakflora/fieldwatch/internal/readings"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type published struct {
	topic   string
	payload []byte
}

// fakeClient records publishes and delivers messages to subscriptions
// synchronously.
type fakeClient struct {
	mu        sync.Mutex
	connected bool
	published []published
	handlers  map[string]MessageHandler
	err       error
}

func newFakeClient(connected bool) *fakeClient {
	return &fakeClient{connected: connected, handlers: map[string]MessageHandler{}}
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{topic, payload})
	return nil
}

func (f *fakeClient) Subscribe(topic string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeClient) deliver(t *testing.T, pattern, topic string, body []byte) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[pattern]
	f.mu.Unlock()
	require.True(t, ok, "no subscription for %s", pattern)
	h(topic, body)
}

type fakeIngester struct {
	mu       sync.Mutex
	payloads []pipeline.Payload
	err      error
}

func (f *fakeIngester) Ingest(_ context.Context, source string, p *pipeline.Payload) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if source != pipeline.SourceMQTT {
		return nil, readings.ErrInvalidReading
	}
	f.payloads = append(f.payloads, *p)
	return &pipeline.Result{Reading: &entities.Reading{ID: uint(len(f.payloads)), DeviceID: p.DeviceID}}, nil
}

func newMetrics(t *testing.T) *metrics.MQTTMetrics {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func soilAlert() *entities.Alert {
	v := 15.0
	return &entities.Alert{
		ID:            7,
		DeviceID:      "DEV-001",
		ReadingID:     3,
		AlertType:     "SoilMoisture",
		Message:       "Soil moisture 15.0% below safe minimum 20.0% (DEV-001)",
		Severity:      "high",
		MeasuredValue: &v,
		CreatedAt:     time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC),
	}
}

func TestAlertPublisherPublishesJSON(t *testing.T) {
	t.Parallel()
	client := newFakeClient(true)
	m := newMetrics(t)
	cfg := DefaultConfig()
	cfg.Topic = "sarawak"
	pub := NewAlertPublisher(client, cfg, m)

	ev := events.NewAlertEvent(events.AlertOpened, soilAlert(), "")
	require.NoError(t, pub.ProcessEvent(ev))

	require.Len(t, client.published, 1)
	assert.Equal(t, "sarawak/alerts/DEV-001", client.published[0].topic)

	var msg AlertMessage
	require.NoError(t, json.Unmarshal(client.published[0].payload, &msg))
	assert.Equal(t, ev.ID, msg.EventID)
	assert.Equal(t, "alert.opened", msg.Event)
	assert.EqualValues(t, 7, msg.AlertID)
	assert.Equal(t, "high", msg.Severity)
	assert.False(t, msg.IsResolved)
	assert.Nil(t, msg.ResolvedAt)

	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesDelivered.WithLabelValues("alert.opened")), 0)
	assert.Equal(t, "mqtt", pub.Name())
}

func TestAlertPublisherSkipsWhileDisconnected(t *testing.T) {
	t.Parallel()
	client := newFakeClient(false)
	pub := NewAlertPublisher(client, DefaultConfig(), nil)

	require.NoError(t, pub.ProcessEvent(events.NewAlertEvent(events.AlertResolved, soilAlert(), "ranger")))
	assert.Empty(t, client.published)
}

func TestAlertPublisherReturnsPublishError(t *testing.T) {
	t.Parallel()
	client := newFakeClient(true)
	client.err = ErrNotConnected
	pub := NewAlertPublisher(client, DefaultConfig(), nil)

	err := pub.ProcessEvent(events.NewAlertEvent(events.AlertOpened, soilAlert(), ""))
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestReadingSubscriber(t *testing.T) {
	t.Parallel()
	client := newFakeClient(true)
	ing := &fakeIngester{}
	m := newMetrics(t)
	cfg := DefaultConfig()
	sub := NewReadingSubscriber(client, ing, cfg, m)
	require.NoError(t, sub.Start())

	pattern := ReadingsTopic(cfg.Topic)
	client.deliver(t, pattern, "fieldwatch/readings/DEV-001", []byte(`{"soil_moisture":15,"motion_detected":"false"}`))
	client.deliver(t, pattern, "fieldwatch/readings/DEV-014", []byte(`{"device_id":"DEV-014","humidity":97}`))
	client.deliver(t, pattern, "fieldwatch/readings/DEV-020", []byte(`{"device_id":"DEV-001","motion_detected":1}`))
	client.deliver(t, pattern, "fieldwatch/readings/DEV-020", []byte(`not json`))
	client.deliver(t, pattern, "fieldwatch/readings/", []byte(`{"soil_moisture":15}`))

	require.Len(t, ing.payloads, 2)
	assert.Equal(t, "DEV-001", ing.payloads[0].DeviceID)
	assert.InDelta(t, 15, *ing.payloads[0].SoilMoisture, 0)
	assert.Equal(t, "DEV-014", ing.payloads[1].DeviceID)

	assert.InDelta(t, 2, testutil.ToFloat64(m.MessagesDelivered.WithLabelValues("reading")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.Errors.WithLabelValues("ingest")), 0)
}

func TestReadingSubscriberCountsIngestFailures(t *testing.T) {
	t.Parallel()
	client := newFakeClient(true)
	ing := &fakeIngester{err: readings.ErrInvalidReading}
	m := newMetrics(t)
	sub := NewReadingSubscriber(client, ing, DefaultConfig(), m)
	require.NoError(t, sub.Start())

	sub.HandleMessage("fieldwatch/readings/DEV-001", []byte(`{"humidity":140}`))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("ingest")), 0)

	err := sub.handle("fieldwatch/readings/DEV-001", []byte(`{"humidity":140}`))
	require.ErrorIs(t, err, readings.ErrInvalidReading)
	assert.True(t, errors.IsCategory(err, errors.CategoryIngestion))
}

func TestDeviceFromReadingTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic  string
		device string
		ok     bool
	}{
		{"fieldwatch/readings/DEV-001", "DEV-001", true},
		{"fieldwatch/readings/", "", false},
		{"fieldwatch/readings/DEV-001/extra", "", false},
		{"fieldwatch/alerts/DEV-001", "", false},
		{"other/readings/DEV-001", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			t.Parallel()
			device, ok := DeviceFromReadingTopic("fieldwatch", tt.topic)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.device, device)
		})
	}
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(&conf.MQTTSettings{
		Broker: "tcp://broker.local:1883",
		Topic:  "sarawak/",
		QoS:    2,
		Retain: true,
	}, "fieldwatch")
	assert.Equal(t, "sarawak", cfg.Topic)
	assert.EqualValues(t, 2, cfg.QoS)
	assert.True(t, cfg.Retain)
	assert.Regexp(t, `^fieldwatch-[0-9a-f]{8}$`, cfg.ClientID)

	fixed := ConfigFromSettings(&conf.MQTTSettings{ClientID: "station-1", QoS: 7}, "")
	assert.Equal(t, "station-1", fixed.ClientID)
	assert.Equal(t, "fieldwatch", fixed.Topic)
	assert.EqualValues(t, 1, fixed.QoS)
}

func TestClientPublishWithoutConnection(t *testing.T) {
	t.Parallel()
	m := newMetrics(t)
	c := NewClient(DefaultConfig(), m)

	assert.False(t, c.IsConnected())
	err := c.Publish(context.Background(), "fieldwatch/alerts/DEV-001", []byte("{}"))
	require.ErrorIs(t, err, ErrNotConnected)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("publish")), 0)

	require.NoError(t, c.Subscribe("fieldwatch/readings/+", func(string, []byte) {}))
	c.Disconnect()
}

func TestClientRejectsInvalidBroker(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Broker = "broker-without-scheme"
	cfg.ReconnectCooldown = 0
	c := NewClient(cfg, nil)

	err := c.Connect(context.Background())
	require.Error(t, err)
}
