// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "fieldwatch")
	viper.SetDefault("main.log.level", "info")
	viper.SetDefault("main.log.format", "json")
	viper.SetDefault("main.log.path", "")
	viper.SetDefault("main.log.timezone", "UTC")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "3000")
	viper.SetDefault("webserver.basepath", "")
	viper.SetDefault("webserver.operatortoken", "")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.timeout", 5*time.Second)
	viper.SetDefault("database.slowthreshold", 200*time.Millisecond)
	viper.SetDefault("database.sqlite.path", "fieldwatch.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.username", "fieldwatch")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "sarawak_flora")

	viper.SetDefault("alerting.thresholds.temperature.min", 15.0)
	viper.SetDefault("alerting.thresholds.temperature.max", 35.0)
	viper.SetDefault("alerting.thresholds.humidity.min", 40.0)
	viper.SetDefault("alerting.thresholds.humidity.max", 95.0)
	viper.SetDefault("alerting.thresholds.soilmoisture.min", 20.0)
	viper.SetDefault("alerting.thresholds.soilmoisture.max", 80.0)
	viper.SetDefault("alerting.escalationratio", 0.25)
	viper.SetDefault("alerting.retry.maxattempts", 4)
	viper.SetDefault("alerting.retry.initialdelay", 50*time.Millisecond)
	viper.SetDefault("alerting.retry.maxdelay", 2*time.Second)
	viper.SetDefault("alerting.reevaluate.enabled", true)
	viper.SetDefault("alerting.reevaluate.interval", 30*time.Second)
	viper.SetDefault("alerting.reevaluate.batchsize", 100)

	viper.SetDefault("privacy.coarsegrid", 0.5)

	viper.SetDefault("readings.historylimit", 500)
	viper.SetDefault("readings.pagesize", 100)
	viper.SetDefault("readings.listlimit", 100)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "")
	viper.SetDefault("mqtt.topic", "fieldwatch")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retain", false)
	viper.SetDefault("mqtt.ingest", false)

	viper.SetDefault("notification.push.enabled", false)
	viper.SetDefault("notification.push.urls", []string{})
	viper.SetDefault("notification.push.minseverity", "high")
	viper.SetDefault("notification.push.timeout", 10*time.Second)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.environment", "production")

	viper.SetDefault("registry.cachettl", 5*time.Minute)

	viper.SetDefault("eventbus.buffersize", 1000)
	viper.SetDefault("eventbus.workers", 4)

	viper.SetDefault("seed.path", "")
}
