package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.NewStd("not connected to MQTT broker")

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	subscriptions   map[string]MessageHandler
	metrics         *metrics.MQTTMetrics
	logger          logger.Logger
}

// NewClient creates a new MQTT client with the provided configuration.
func NewClient(config Config, m *metrics.MQTTMetrics) Client {
	return &client{
		config:        config,
		subscriptions: make(map[string]MessageHandler),
		metrics:       m,
		logger:        GetLogger().With(logger.String("broker", privacy.AnonymizeURL(config.Broker))),
	}
}

// Connect resolves the broker host and connects. Attempts closer together
// than ReconnectCooldown are refused.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", since)
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connectError(fmt.Errorf("invalid broker URL: %w", err))
	}
	if u.Scheme == "" || u.Host == "" {
		return c.connectError(fmt.Errorf("invalid broker URL: scheme and host required"))
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connectError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(5 * time.Minute)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		c.metrics.IncrementReconnectAttempts()
	})

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return c.connectError(ctx.Err())
	case <-time.After(c.config.ConnectTimeout):
		return c.connectError(fmt.Errorf("connection timeout"))
	}
	if err := token.Error(); err != nil {
		return c.connectError(fmt.Errorf("connection error: %w", err))
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

func (c *client) connectError(err error) error {
	c.metrics.IncrementErrors("connect")
	return errors.New(privacy.WrapError(err)).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Build()
}

// Publish sends payload to topic with the configured QoS and retain flag.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.IsConnected() {
		c.metrics.IncrementErrors("publish")
		return ErrNotConnected
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		c.metrics.IncrementErrors("publish")
		return ctx.Err()
	case <-time.After(c.config.PublishTimeout):
		c.metrics.IncrementErrors("publish")
		c.logger.Warn("publish timeout", logger.String("topic", topic))
		return errors.New(fmt.Errorf("publish timeout for topic %s", topic)).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors("publish")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	c.metrics.ObservePublish(len(payload), time.Since(start))
	c.logger.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// Subscribe registers handler and subscribes right away when connected;
// otherwise the subscription is made on the next connect.
func (c *client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return c.subscribe(c.internalClient, topic, handler)
}

func (c *client) subscribe(pc paho.Client, topic string, handler MessageHandler) error {
	token := pc.Subscribe(topic, c.config.QoS, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.config.PublishTimeout) {
		c.metrics.IncrementErrors("subscribe")
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors("subscribe")
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.logger.Info("subscribed", logger.String("topic", topic))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	pc := c.internalClient
	c.mu.Unlock()
	return pc != nil && pc.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	pc := c.internalClient
	c.mu.Unlock()

	if pc != nil && pc.IsConnected() {
		pc.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
		c.logger.Info("disconnected")
	}
}

// onConnect re-establishes subscriptions; the session is clean on every
// connect.
func (c *client) onConnect(pc paho.Client) {
	c.logger.Info("connected to MQTT broker")
	c.metrics.UpdateConnectionStatus(true)

	c.mu.Lock()
	subs := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, h := range c.subscriptions {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		go func() {
			if err := c.subscribe(pc, topic, h); err != nil {
				c.logger.Warn("resubscribe failed", logger.String("topic", topic), logger.Error(err))
			}
		}()
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("connection to MQTT broker lost", logger.Error(privacy.WrapError(err)))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors("connection_lost")
}
