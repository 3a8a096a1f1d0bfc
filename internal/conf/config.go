// config.go: settings struct for fieldwatch and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sarawakflora/fieldwatch/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig selects level, format and destination of the service log.
type LogConfig struct {
	Level    string // trace, debug, info, warn, error
	Format   string // json or text
	Path     string // log file path, empty for stdout
	Timezone string // UTC, Local or an IANA zone name
}

// BandSettings is an inclusive safe band for one metric.
type BandSettings struct {
	Min float64
	Max float64
}

// ThresholdSettings is the default safe-band policy applied to devices
// without their own configured band.
type ThresholdSettings struct {
	Temperature  BandSettings            // degrees celsius
	Humidity     BandSettings            // percent
	SoilMoisture BandSettings            // percent
	Custom       map[string]BandSettings // additional numeric conditions by name
}

// RetrySettings bounds the backoff of retryable store operations.
type RetrySettings struct {
	MaxAttempts  int           // total attempts including the first
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap for the exponential delay
}

// ReevaluateSettings controls the sweep that evaluates stored readings whose
// evaluation failed after ingestion.
type ReevaluateSettings struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// AlertingSettings holds the alert lifecycle policy.
type AlertingSettings struct {
	Thresholds      ThresholdSettings
	EscalationRatio float64 // fraction of band width beyond which severity escalates
	Retry           RetrySettings
	Reevaluate      ReevaluateSettings
}

// SQLiteSettings configures the embedded store.
type SQLiteSettings struct {
	Path string // database file, ":memory:" for a transient store
}

// MySQLSettings configures the networked store.
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	// PasswordFile, when set, is read instead of Password.
	PasswordFile string
	Database     string
}

// DatabaseSettings selects and configures the relational store.
type DatabaseSettings struct {
	Type          string        // sqlite or mysql
	Timeout       time.Duration // upper bound for a single store operation
	SlowThreshold time.Duration // statements slower than this are logged as warnings
	SQLite        SQLiteSettings
	MySQL         MySQLSettings
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled       bool
	Port          string
	BasePath      string // optional prefix for every route
	OperatorToken string // when set, operator requests must carry it as a bearer token
	// OperatorTokenFile, when set, is read instead of OperatorToken.
	OperatorTokenFile string
	Debug             bool
	// AutoTLS obtains a Let's Encrypt certificate for TLSHost.
	AutoTLS bool
	TLSHost string
	// TLSCacheDir stores issued certificates; empty uses the config directory.
	TLSCacheDir string
}

// PrivacySettings configures location masking.
type PrivacySettings struct {
	CoarseGrid float64 // cell size in degrees of the coarse region label
}

// ReadingsSettings configures the reading store.
type ReadingsSettings struct {
	HistoryLimit int // count bound for unbounded history windows
	PageSize     int // rows fetched per history page
	ListLimit    int // default limit of newest-first listings
}

// MQTTSettings configures alert publishing and reading ingest over MQTT.
type MQTTSettings struct {
	Enabled      bool
	Broker       string
	ClientID     string
	Username     string
	Password     string
	PasswordFile string // read instead of Password when set
	Topic        string // topic prefix
	QoS          int
	Retain       bool
	Ingest       bool // subscribe to <topic>/readings/+
}

// PushSettings configures push delivery of opened alerts.
type PushSettings struct {
	Enabled     bool
	URLs        []string // shoutrrr service URLs
	MinSeverity string   // lowest severity that is pushed
	Timeout     time.Duration
}

// NotificationSettings groups notification channels.
type NotificationSettings struct {
	Push PushSettings
}

// TelemetrySettings configures error reporting.
type TelemetrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// RegistrySettings configures registry lookups.
type RegistrySettings struct {
	CacheTTL time.Duration // lifetime of cached species lookups
}

// EventBusSettings sizes the asynchronous event bus.
type EventBusSettings struct {
	BufferSize int
	Workers    int
}

// SeedSettings points at the demo data file used by the seed command.
type SeedSettings struct {
	Path string // empty uses the built-in demo data
}

// Settings contains all configuration options for fieldwatch.
type Settings struct {
	Debug bool

	Main struct {
		Name string
		Log  LogConfig
	}

	WebServer    WebServerSettings
	Database     DatabaseSettings
	Alerting     AlertingSettings
	Privacy      PrivacySettings
	Readings     ReadingsSettings
	MQTT         MQTTSettings
	Notification NotificationSettings
	Telemetry    TelemetrySettings
	Registry     RegistrySettings
	EventBus     EventBusSettings
	Seed         SeedSettings
}

// SkipLoadAnnotation marks CLI commands that run without loading settings.
const SkipLoadAnnotation = "fieldwatch/skip-settings"

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file found on the default search paths,
// creating one from the embedded defaults when none exists.
func Load() (*Settings, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from configFile, or from the default search
// paths when configFile is empty. Environment variables override file values.
func LoadFrom(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings()
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func unmarshalSettings() (*Settings, error) {
	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper registers defaults and env bindings, then reads the config file.
func initViper(configFile string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	data, err := DefaultConfigYAML()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// DefaultConfigYAML returns the embedded default configuration file.
func DefaultConfigYAML() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance, nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings writes the current settings to the config file in use.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	if settingsInstance == nil {
		return fmt.Errorf("settings not loaded")
	}

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		found, err := FindConfigFile()
		if err != nil {
			return fmt.Errorf("error finding config file: %w", err)
		}
		configPath = found
	}

	if err := SaveYAMLConfig(configPath, settingsInstance); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	GetLogger().Info("settings saved", logger.String("path", configPath))
	return nil
}

// SaveYAMLConfig writes settings to configPath through a temporary file so a
// crash never leaves a truncated config behind. Comments are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}
