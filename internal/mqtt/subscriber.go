package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
	"github.com/sarawakflora/fieldwatch/internal/readings"
)

// Ingester accepts decoded reading payloads.
type Ingester interface {
	Ingest(ctx context.Context, source string, p *pipeline.Payload) (*pipeline.Result, error)
}

// ReadingSubscriber feeds readings published on <prefix>/readings/<device_id>
// into the ingestion pipeline.
type ReadingSubscriber struct {
	client   Client
	ingester Ingester
	prefix   string
	timeout  time.Duration
	metrics  *metrics.MQTTMetrics
	logger   logger.Logger
}

// NewReadingSubscriber creates a subscriber for the topic prefix of cfg.
func NewReadingSubscriber(client Client, ingester Ingester, cfg Config, m *metrics.MQTTMetrics) *ReadingSubscriber {
	return &ReadingSubscriber{
		client:   client,
		ingester: ingester,
		prefix:   cfg.Topic,
		timeout:  cfg.PublishTimeout,
		metrics:  m,
		logger:   GetLogger().With(logger.String("consumer", "readings")),
	}
}

// Start subscribes to the readings topic.
func (s *ReadingSubscriber) Start() error {
	return s.client.Subscribe(ReadingsTopic(s.prefix), s.HandleMessage)
}

// HandleMessage ingests one message. The device id in the topic fills an
// empty payload device_id; a payload naming another device is rejected.
func (s *ReadingSubscriber) HandleMessage(topic string, body []byte) {
	if err := s.handle(topic, body); err != nil {
		s.metrics.IncrementErrors("ingest")
		s.logger.Warn("rejected reading message",
			logger.String("topic", topic),
			logger.Error(err))
		return
	}
	s.metrics.IncrementMessages("reading")
}

func (s *ReadingSubscriber) handle(topic string, body []byte) error {
	deviceID, ok := DeviceFromReadingTopic(s.prefix, topic)
	if !ok {
		return s.invalid("unexpected topic")
	}

	var p pipeline.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryValidation).
			Context("topic", topic).
			Build()
	}
	switch p.DeviceID {
	case "":
		p.DeviceID = deviceID
	case deviceID:
	default:
		return s.invalid("payload device_id does not match topic")
	}

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.ingester.Ingest(ctx, pipeline.SourceMQTT, &p)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryIngestion).
			DeviceContext(deviceID).
			Context("topic", topic).
			Build()
	}
	s.logger.Debug("reading ingested",
		logger.String("device_id", deviceID),
		logger.Uint64("reading_id", uint64(res.Reading.ID)))
	return nil
}

func (s *ReadingSubscriber) invalid(msg string) error {
	return errors.Newf("%w: %s", readings.ErrInvalidReading, msg).
		Component("mqtt").
		Category(errors.CategoryValidation).
		Build()
}
