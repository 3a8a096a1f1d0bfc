// env.go - environment variable configuration and validation for fieldwatch
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"main.log.level", "FIELDWATCH_LOG_LEVEL", validateEnvLogLevel},
		{"main.log.format", "FIELDWATCH_LOG_FORMAT", validateEnvLogFormat},
		{"main.log.path", "FIELDWATCH_LOG_PATH", nil},

		{"webserver.port", "FIELDWATCH_PORT", validateEnvPort},
		{"webserver.operatortoken", "FIELDWATCH_OPERATOR_TOKEN", nil},

		{"database.type", "FIELDWATCH_DB_TYPE", validateEnvDatabaseType},
		{"database.timeout", "FIELDWATCH_DB_TIMEOUT", validateEnvDuration},
		{"database.sqlite.path", "FIELDWATCH_SQLITE_PATH", nil},
		{"database.mysql.host", "FIELDWATCH_MYSQL_HOST", nil},
		{"database.mysql.port", "FIELDWATCH_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "FIELDWATCH_MYSQL_USER", nil},
		{"database.mysql.password", "FIELDWATCH_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "FIELDWATCH_MYSQL_DATABASE", nil},

		{"privacy.coarsegrid", "FIELDWATCH_COARSE_GRID", validateEnvCoarseGrid},

		{"mqtt.enabled", "FIELDWATCH_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "FIELDWATCH_MQTT_BROKER", nil},
		{"mqtt.username", "FIELDWATCH_MQTT_USERNAME", nil},
		{"mqtt.password", "FIELDWATCH_MQTT_PASSWORD", nil},

		{"telemetry.enabled", "FIELDWATCH_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.dsn", "FIELDWATCH_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error, got '%s'", value)
	}
}

func validateEnvLogFormat(value string) error {
	switch strings.ToLower(value) {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log format must be json or text, got '%s'", value)
	}
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	default:
		return fmt.Errorf("database type must be %s or %s, got '%s'", DatabaseSQLite, DatabaseMySQL, value)
	}
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", value)
	}
	return nil
}

func validateEnvCoarseGrid(value string) error {
	grid, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid coarse grid: %w", err)
	}
	if grid <= 0 || grid > 10 {
		return fmt.Errorf("coarse grid must be in (0, 10] degrees, got %g", grid)
	}
	return nil
}
