// Package app assembles the fieldwatch service from settings and runs it
// until the process is told to stop.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/alerting"
	"github.com/sarawakflora/fieldwatch/internal/api"
	v1 "github.com/sarawakflora/fieldwatch/internal/api/v1"
	"github.com/sarawakflora/fieldwatch/internal/buildinfo"
	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/dashboard"
	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/events"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/mqtt"
	"github.com/sarawakflora/fieldwatch/internal/notification"
	"github.com/sarawakflora/fieldwatch/internal/observability"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
	"github.com/sarawakflora/fieldwatch/internal/readings"
	"github.com/sarawakflora/fieldwatch/internal/registry"
)

const (
	busShutdownTimeout = 10 * time.Second
	mqttConnectTimeout = 15 * time.Second
)

// GetLogger returns the app module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// App is one assembled fieldwatch service.
type App struct {
	settings *conf.Settings
	build    buildinfo.BuildInfo
	logger   logger.Logger

	Metrics   *observability.Metrics
	Store     *datastore.Store
	Registry  *registry.Registry
	Ledger    *readings.Store
	Bus       *events.EventBus
	Alerts    *alerting.Manager
	Ingestor  *pipeline.Ingestor
	Dashboard *dashboard.Aggregator
	Server    *api.Server

	mqttClient  mqtt.Client
	reevaluator *pipeline.Reevaluator

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Run builds the service, starts it and blocks until ctx is done or the
// process receives SIGINT or SIGTERM. Config file edits update the alert
// policy while running.
func Run(ctx context.Context, settings *conf.Settings, build buildinfo.BuildInfo) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := New(settings, build)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		a.Stop()
		return err
	}

	conf.Watch(a.ApplySettings)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	a.Stop()
	return nil
}

// New opens the store and wires every component settings enable. Nothing
// runs until Start.
func New(settings *conf.Settings, build buildinfo.BuildInfo) (*App, error) {
	if build == nil {
		build = buildinfo.NewContext("", "", "")
	}
	a := &App{settings: settings, build: build, logger: GetLogger()}

	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	if settings.Telemetry.Enabled {
		if err := errors.InitSentry(settings.Telemetry.DSN, settings.Telemetry.Environment, buildinfo.Release(build)); err != nil {
			a.logger.Warn("error reporting disabled", logger.Error(err))
		}
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	a.Metrics = m

	store, err := datastore.Open(&settings.Database)
	if err != nil {
		return nil, err
	}
	a.Store = store

	a.Registry = registry.New(store.Devices, store.Species, settings.Registry.CacheTTL)
	a.Ledger = readings.NewStore(store.Readings, a.Registry,
		readings.WithSettings(&settings.Readings),
		readings.WithStoreTimeout(settings.Database.Timeout))
	a.Bus = events.New(events.ConfigFromSettings(&settings.EventBus))
	retry := alerting.RetryConfigFromSettings(&settings.Alerting.Retry)
	a.Alerts = alerting.NewManager(store.Alerts, store.Readings, a.Registry,
		alerting.WithPolicy(alerting.PolicyFromSettings(&settings.Alerting)),
		alerting.WithRetry(retry),
		alerting.WithStoreTimeout(settings.Database.Timeout),
		alerting.WithPublisher(a.Bus),
		alerting.WithMetrics(m.Alerting))
	a.Ingestor = pipeline.NewIngestor(a.Ledger, a.Alerts,
		pipeline.WithIngestionMetrics(m.Ingestion),
		pipeline.WithEvaluationTimeout(evaluationBudget(settings.Database.Timeout, retry)))

	if settings.Alerting.Reevaluate.Enabled {
		a.reevaluator = pipeline.NewReevaluator(store.Readings, a.Alerts, &settings.Alerting.Reevaluate, m.Ingestion)
	}

	policy := privacy.PolicyFromSettings(&settings.Privacy)
	a.Dashboard = dashboard.New(a.Registry, a.Ledger, store.Alerts, dashboard.Counters{
		Species:      store.Species,
		Observations: store.Observations,
		Devices:      store.Devices,
		Alerts:       store.Alerts,
		Readings:     store.Readings,
	}, policy)

	if err := a.registerConsumers(); err != nil {
		a.Stop()
		return nil, err
	}

	if settings.WebServer.Enabled {
		server, err := api.New(settings, &v1.Dependencies{
			Store:     store,
			Registry:  a.Registry,
			Ledger:    a.Ledger,
			Alerts:    a.Alerts,
			Ingestor:  a.Ingestor,
			Dashboard: a.Dashboard,
			Policy:    policy,
			Metrics:   m,
		})
		if err != nil {
			a.Stop()
			return nil, err
		}
		a.Server = server
	}

	return a, nil
}

// registerConsumers attaches the MQTT publisher and the push dispatcher to
// the event bus.
func (a *App) registerConsumers() error {
	s := a.settings

	if s.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(&s.MQTT, s.Main.Name)
		a.mqttClient = mqtt.NewClient(cfg, a.Metrics.MQTT)
		if err := a.Bus.RegisterConsumer(mqtt.NewAlertPublisher(a.mqttClient, cfg, a.Metrics.MQTT)); err != nil {
			return err
		}
		if s.MQTT.Ingest {
			sub := mqtt.NewReadingSubscriber(a.mqttClient, a.Ingestor, cfg, a.Metrics.MQTT)
			if err := sub.Start(); err != nil {
				return err
			}
		}
	}

	if s.Notification.Push.Enabled {
		dispatcher, err := notification.NewDispatcherFromSettings(&s.Notification.Push, a.Metrics.Notification)
		if err != nil {
			return err
		}
		if err := a.Bus.RegisterConsumer(dispatcher); err != nil {
			return err
		}
	}
	return nil
}

// Start loads the open alert gauge, connects MQTT in the background and
// starts the re-evaluator and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Alerts.SyncOpenGauge(ctx); err != nil {
		a.logger.Warn("failed to load open alert counts", logger.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	if a.mqttClient != nil {
		a.wg.Go(func() {
			connectCtx, cancel := context.WithTimeout(runCtx, mqttConnectTimeout)
			defer cancel()
			// the client keeps retrying on its own after a failed first attempt
			if err := a.mqttClient.Connect(connectCtx); err != nil {
				a.logger.Warn("MQTT broker unreachable, alerts are not published until it connects",
					logger.String("broker", a.settings.MQTT.Broker),
					logger.Error(err))
			}
		})
	}

	if a.reevaluator != nil {
		a.wg.Go(func() { a.reevaluator.Run(runCtx) })
	}

	if a.Server != nil {
		a.Server.Start()
	}

	a.logger.Info("fieldwatch started",
		logger.String("version", a.build.GetVersion()),
		logger.Bool("http", a.Server != nil),
		logger.Bool("mqtt", a.mqttClient != nil),
		logger.Bool("push", a.settings.Notification.Push.Enabled))
	return nil
}

// ApplySettings takes over a reloaded configuration. Only the alert policy
// is applied live; everything else needs a restart.
func (a *App) ApplySettings(s *conf.Settings) {
	a.Alerts.SetPolicy(alerting.PolicyFromSettings(&s.Alerting))
	a.logger.Info("alert policy updated")
}

// Stop shuts components down in reverse dependency order: the server stops
// taking readings first and the store closes last.
func (a *App) Stop() {
	if a.Server != nil {
		if err := a.Server.Shutdown(); err != nil {
			a.logger.Warn("HTTP server shutdown failed", logger.Error(err))
		}
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}

	if err := a.Bus.Shutdown(busShutdownTimeout); err != nil {
		a.logger.Warn("event bus shutdown incomplete", logger.Error(err))
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warn("failed to close store", logger.Error(err))
		}
	}
	a.logger.Info("fieldwatch stopped")
}

// evaluationBudget bounds one inline evaluation: the device lock wait and
// every retry attempt may each use the full store timeout, and each attempt
// may be followed by the longest backoff delay.
func evaluationBudget(storeTimeout time.Duration, retry alerting.RetryConfig) time.Duration {
	if storeTimeout <= 0 {
		return 0
	}
	return storeTimeout + time.Duration(max(retry.MaxAttempts, 1))*(storeTimeout+retry.MaxDelay)
}
