// Package mqtt publishes alert lifecycle events to an MQTT broker and
// optionally accepts device readings from it.
package mqtt

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// MessageHandler receives the topic and payload of an incoming message.
type MessageHandler func(topic string, payload []byte)

// Client defines the MQTT operations fieldwatch uses.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic. It fails when not connected.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers handler for topic. Subscriptions survive
	// reconnects.
	Subscribe(topic string, handler MessageHandler) error

	// IsConnected reports whether the client is connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection to the broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // topic prefix
	QoS      byte
	Retain   bool

	ReconnectCooldown time.Duration
	ReconnectDelay    time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		Topic:             "fieldwatch",
		QoS:               1,
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    1 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings builds a client configuration. An empty client id is
// replaced by "<name>-<random suffix>" so that several instances can share
// a broker.
func ConfigFromSettings(s *conf.MQTTSettings, name string) Config {
	cfg := DefaultConfig()
	cfg.Broker = s.Broker
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Retain = s.Retain
	if s.Topic != "" {
		cfg.Topic = strings.TrimSuffix(s.Topic, "/")
	}
	if s.QoS >= 0 && s.QoS <= 2 {
		cfg.QoS = byte(s.QoS)
	}
	cfg.ClientID = s.ClientID
	if cfg.ClientID == "" {
		if name == "" {
			name = "fieldwatch"
		}
		cfg.ClientID = name + "-" + uuid.NewString()[:8]
	}
	return cfg
}

// AlertTopic is the topic alert events of deviceID are published on.
func AlertTopic(prefix, deviceID string) string {
	return prefix + "/alerts/" + deviceID
}

// ReadingsTopic is the wildcard topic readings are accepted from.
func ReadingsTopic(prefix string) string {
	return prefix + "/readings/+"
}

// DeviceFromReadingTopic extracts the device id of a readings topic.
func DeviceFromReadingTopic(prefix, topic string) (string, bool) {
	deviceID, ok := strings.CutPrefix(topic, prefix+"/readings/")
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", false
	}
	return deviceID, true
}

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
