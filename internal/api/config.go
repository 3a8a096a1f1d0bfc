// Package api provides the HTTP server of fieldwatch. The JSON endpoints
// live in the v1 subpackage.
package api

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("server")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "1M"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Server binding
	Host     string
	Port     string
	BasePath string // optional route prefix

	AllowedOrigins []string // CORS allowed origins

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string // e.g. "1M"

	// AutoTLS serves HTTPS with a certificate issued for TLSHost.
	AutoTLS     bool
	TLSHost     string
	TLSCacheDir string

	Debug    bool
	LogLevel logger.LogLevel
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		LogLevel:        logger.LogLevelInfo,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings.WebServer.Port != "" {
		cfg.Port = settings.WebServer.Port
	}
	cfg.BasePath = strings.TrimRight(settings.WebServer.BasePath, "/")
	cfg.AutoTLS = settings.WebServer.AutoTLS
	cfg.TLSHost = settings.WebServer.TLSHost
	cfg.TLSCacheDir = settings.WebServer.TLSCacheDir
	if cfg.AutoTLS && cfg.TLSCacheDir == "" {
		if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 0 {
			cfg.TLSCacheDir = filepath.Join(paths[0], "autocert")
		}
	}

	cfg.Debug = settings.WebServer.Debug || settings.Debug
	if cfg.Debug {
		cfg.LogLevel = logger.LogLevelDebug
	}
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("base path %q must start with /", c.BasePath)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.AutoTLS && (c.TLSHost == "" || c.TLSCacheDir == "") {
		return fmt.Errorf("auto TLS needs a host and a certificate cache directory")
	}
	return nil
}

// Address returns the address the server listens on.
func (c *Config) Address() string {
	if c.Host == "" {
		return ":" + c.Port
	}
	return c.Host + ":" + c.Port
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, base_path=%q, auto_tls=%v, debug=%v",
		c.Address(), c.BasePath, c.AutoTLS, c.Debug)
}
