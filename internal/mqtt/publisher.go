package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/events"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
)

// AlertMessage is the JSON document published for an alert transition.
type AlertMessage struct {
	EventID    string     `json:"event_id"`
	Event      string     `json:"event"`
	AlertID    uint       `json:"alert_id"`
	DeviceID   string     `json:"device_id"`
	ReadingID  uint       `json:"reading_id"`
	AlertType  string     `json:"alert_type"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	IsResolved bool       `json:"is_resolved"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
	Resolution *string    `json:"resolution,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewAlertMessage converts an event to its wire form.
func NewAlertMessage(ev *events.AlertEvent) AlertMessage {
	a := ev.Alert
	return AlertMessage{
		EventID:    ev.ID,
		Event:      string(ev.Type),
		AlertID:    a.ID,
		DeviceID:   ev.DeviceID,
		ReadingID:  a.ReadingID,
		AlertType:  a.AlertType,
		Severity:   a.Severity,
		Message:    a.Message,
		IsResolved: a.IsResolved,
		CreatedAt:  a.CreatedAt,
		ResolvedAt: a.ResolvedAt,
		ResolvedBy: a.ResolvedBy,
		Resolution: a.Resolution,
		Timestamp:  ev.Timestamp,
	}
}

// AlertPublisher is an event bus consumer that forwards alert transitions
// to the broker.
type AlertPublisher struct {
	client  Client
	prefix  string
	timeout time.Duration
	metrics *metrics.MQTTMetrics
	logger  logger.Logger
}

// NewAlertPublisher creates a publisher writing below the topic prefix of cfg.
func NewAlertPublisher(client Client, cfg Config, m *metrics.MQTTMetrics) *AlertPublisher {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	return &AlertPublisher{
		client:  client,
		prefix:  cfg.Topic,
		timeout: timeout,
		metrics: m,
		logger:  GetLogger().With(logger.String("consumer", "alerts")),
	}
}

// Name implements events.EventConsumer.
func (p *AlertPublisher) Name() string { return "mqtt" }

// ProcessEvent publishes ev. Events are dropped while disconnected; the
// database stays the source of truth.
func (p *AlertPublisher) ProcessEvent(ev *events.AlertEvent) error {
	if !p.client.IsConnected() {
		p.logger.Debug("broker not connected, skipping alert event",
			logger.String("event", string(ev.Type)),
			logger.String("device_id", ev.DeviceID))
		return nil
	}

	body, err := json.Marshal(NewAlertMessage(ev))
	if err != nil {
		return fmt.Errorf("encode alert event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	topic := AlertTopic(p.prefix, ev.DeviceID)
	if err := p.client.Publish(ctx, topic, body); err != nil {
		return err
	}
	p.metrics.IncrementMessages(string(ev.Type))
	return nil
}
