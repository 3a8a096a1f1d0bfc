// conf/validate.go

package conf

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Supported database types.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and reports every
// problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateLogSettings,
		validateWebServerSettings,
		validateDatabaseSettings,
		validateAlertingSettings,
		validatePrivacySettings,
		validateReadingsSettings,
		validateMQTTSettings,
		validatePushSettings,
		validateEventBusSettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLogSettings(s *Settings) error {
	if s.Main.Log.Level != "" {
		if err := validateEnvLogLevel(s.Main.Log.Level); err != nil {
			return err
		}
	}
	if s.Main.Log.Format != "" {
		return validateEnvLogFormat(s.Main.Log.Format)
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if !s.WebServer.Enabled {
		return nil
	}
	if err := validateEnvPort(s.WebServer.Port); err != nil {
		return fmt.Errorf("webserver: %w", err)
	}
	if s.WebServer.BasePath != "" && !strings.HasPrefix(s.WebServer.BasePath, "/") {
		return fmt.Errorf("webserver: basepath must start with '/', got '%s'", s.WebServer.BasePath)
	}
	if s.WebServer.AutoTLS && s.WebServer.TLSHost == "" {
		return fmt.Errorf("webserver: autotls requires tlshost")
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	db := &s.Database
	db.Type = strings.ToLower(db.Type)

	switch db.Type {
	case DatabaseSQLite:
		if db.SQLite.Path == "" {
			return fmt.Errorf("database: sqlite path must be set")
		}
	case DatabaseMySQL:
		if db.MySQL.Host == "" || db.MySQL.Database == "" {
			return fmt.Errorf("database: mysql host and database must be set")
		}
		if _, err := strconv.Atoi(db.MySQL.Port); err != nil {
			return fmt.Errorf("database: invalid mysql port '%s'", db.MySQL.Port)
		}
	default:
		return fmt.Errorf("database: type must be %s or %s, got '%s'", DatabaseSQLite, DatabaseMySQL, db.Type)
	}

	if db.Timeout <= 0 {
		return fmt.Errorf("database: timeout must be positive")
	}
	return nil
}

func validateBand(name string, b BandSettings) error {
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) {
		return fmt.Errorf("alerting: %s band must be numeric", name)
	}
	if b.Min > b.Max {
		return fmt.Errorf("alerting: %s band min %g exceeds max %g", name, b.Min, b.Max)
	}
	return nil
}

func validateAlertingSettings(s *Settings) error {
	a := &s.Alerting
	var errs []string

	bands := map[string]BandSettings{
		"temperature":  a.Thresholds.Temperature,
		"humidity":     a.Thresholds.Humidity,
		"soilmoisture": a.Thresholds.SoilMoisture,
	}
	for name, band := range a.Thresholds.Custom {
		bands[name] = band
	}
	for name, band := range bands {
		if err := validateBand(name, band); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if a.EscalationRatio < 0 {
		errs = append(errs, "alerting: escalationratio must not be negative")
	}
	if a.Retry.MaxAttempts < 1 {
		errs = append(errs, "alerting: retry.maxattempts must be at least 1")
	}
	if a.Retry.InitialDelay < 0 || a.Retry.MaxDelay < a.Retry.InitialDelay {
		errs = append(errs, "alerting: retry delays must satisfy 0 <= initialdelay <= maxdelay")
	}
	if a.Reevaluate.Enabled && (a.Reevaluate.Interval <= 0 || a.Reevaluate.BatchSize < 1) {
		errs = append(errs, "alerting: reevaluate requires a positive interval and batchsize")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePrivacySettings(s *Settings) error {
	if s.Privacy.CoarseGrid <= 0 || s.Privacy.CoarseGrid > 10 {
		return fmt.Errorf("privacy: coarsegrid must be in (0, 10] degrees, got %g", s.Privacy.CoarseGrid)
	}
	return nil
}

func validateReadingsSettings(s *Settings) error {
	r := s.Readings
	if r.HistoryLimit < 1 || r.PageSize < 1 || r.ListLimit < 1 {
		return fmt.Errorf("readings: historylimit, pagesize and listlimit must be positive")
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	m := s.MQTT
	if !m.Enabled {
		return nil
	}
	if m.Broker == "" {
		return fmt.Errorf("mqtt: broker must be set when enabled")
	}
	if m.Topic == "" {
		return fmt.Errorf("mqtt: topic must be set when enabled")
	}
	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", m.QoS)
	}
	return nil
}

func validatePushSettings(s *Settings) error {
	p := s.Notification.Push
	if !p.Enabled {
		return nil
	}
	if len(p.URLs) == 0 {
		return fmt.Errorf("notification: push enabled without urls")
	}
	switch p.MinSeverity {
	case "low", "medium", "high", "critical":
		return nil
	default:
		return fmt.Errorf("notification: minseverity must be low, medium, high or critical, got '%s'", p.MinSeverity)
	}
}

func validateEventBusSettings(s *Settings) error {
	if s.EventBus.BufferSize < 1 || s.EventBus.Workers < 1 {
		return fmt.Errorf("eventbus: buffersize and workers must be positive")
	}
	return nil
}
