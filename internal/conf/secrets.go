package conf

import "github.com/sarawakflora/fieldwatch/internal/secrets"

// resolveSecrets replaces credential settings by their file content or
// environment expansion, so the rest of the service sees plain values.
func resolveSecrets(s *Settings) error {
	var err error
	if s.Database.MySQL.Password, err = secrets.Resolve("database.mysql.password",
		s.Database.MySQL.PasswordFile, s.Database.MySQL.Password); err != nil {
		return err
	}
	if s.WebServer.OperatorToken, err = secrets.Resolve("webserver.operatortoken",
		s.WebServer.OperatorTokenFile, s.WebServer.OperatorToken); err != nil {
		return err
	}
	if s.MQTT.Password, err = secrets.Resolve("mqtt.password",
		s.MQTT.PasswordFile, s.MQTT.Password); err != nil {
		return err
	}
	if s.Telemetry.DSN, err = secrets.Resolve("telemetry.dsn", "", s.Telemetry.DSN); err != nil {
		return err
	}
	for i, u := range s.Notification.Push.URLs {
		if s.Notification.Push.URLs[i], err = secrets.Resolve("notification.push.urls", "", u); err != nil {
			return err
		}
	}
	return nil
}
