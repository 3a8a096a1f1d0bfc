package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/acme/autocert"

	mw "github.com/sarawakflora/fieldwatch/internal/api/middleware"
	v1 "github.com/sarawakflora/fieldwatch/internal/api/v1"
	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/observability/metrics"
)

// Server is the fieldwatch HTTP server. It owns the Echo instance, the
// middleware stack and the v1 controller.
type Server struct {
	echo       *echo.Echo
	config     *Config
	settings   *conf.Settings
	logger     logger.Logger
	controller *v1.Controller

	httpMetrics *metrics.HTTPMetrics

	wg       sync.WaitGroup
	errMu    sync.Mutex
	serveErr error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig overrides the configuration derived from settings.
func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// New creates a server serving the v1 endpoints backed by deps.
func New(settings *conf.Settings, deps *v1.Dependencies, opts ...ServerOption) (*Server, error) {
	s := &Server{
		config:   ConfigFromSettings(settings),
		settings: settings,
		logger:   GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if deps.Metrics != nil {
		s.httpMetrics = deps.Metrics.HTTP
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = s.config.Debug
	s.echo.Logger = logger.NewEchoLoggerAdapter(s.logger)
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.IdleTimeout

	s.setupMiddleware()
	s.controller = v1.New(s.echo, settings, deps)

	s.logger.Info("HTTP server initialized",
		logger.String("address", s.config.Address()),
		logger.String("base_path", s.config.BasePath),
		logger.Bool("debug", s.config.Debug))
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())

	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.logger, func(c echo.Context) bool {
		// scrapes and health checks would drown the log
		p := c.Path()
		return p == s.config.BasePath+"/metrics" || p == s.config.BasePath+"/health"
	}))
	s.echo.Use(mw.NewMetrics(s.httpMetrics))

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins

	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// Start begins serving HTTP requests in a background goroutine and returns
// immediately. Use Shutdown to stop the server.
func (s *Server) Start() {
	s.wg.Go(func() {
		if err := s.startBlocking(); err != nil {
			s.errMu.Lock()
			s.serveErr = err
			s.errMu.Unlock()
			s.logger.Error("server error", logger.Error(err))
		}
	})
	s.logger.Info("HTTP server starting",
		logger.String("address", s.config.Address()),
		logger.Bool("auto_tls", s.config.AutoTLS))
}

func (s *Server) startBlocking() error {
	var err error
	if s.config.AutoTLS {
		s.echo.AutoTLSManager.Prompt = autocert.AcceptTOS
		s.echo.AutoTLSManager.Cache = autocert.DirCache(s.config.TLSCacheDir)
		s.echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(s.config.TLSHost)
		err = s.echo.StartAutoTLS(s.config.Address())
	} else {
		err = s.echo.Start(s.config.Address())
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and returns the serve error, if any.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.wg.Wait()

	s.logger.Info("server shutdown complete", logger.Duration("took", time.Since(start)))
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.serveErr
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Controller returns the v1 controller.
func (s *Server) Controller() *v1.Controller {
	return s.controller
}

// Config returns the effective server configuration.
func (s *Server) Config() *Config {
	return s.config
}
