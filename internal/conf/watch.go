package conf

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// Watch reloads the settings whenever the config file changes and hands the
// validated result to onChange. Invalid edits are logged and ignored so the
// running policy stays in effect.
func Watch(onChange func(*Settings)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		settings, err := reload()
		if err != nil {
			GetLogger().Warn("ignoring invalid config change",
				logger.String("file", e.Name),
				logger.Error(err))
			return
		}

		GetLogger().Info("configuration reloaded", logger.String("file", e.Name))
		if onChange != nil {
			onChange(settings)
		}
	})
	viper.WatchConfig()
}

func reload() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := unmarshalSettings()
	if err != nil {
		return nil, err
	}
	settingsInstance = settings
	return settings, nil
}
