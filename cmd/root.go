package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/sarawakflora/fieldwatch/cmd/config"
	"github.com/sarawakflora/fieldwatch/cmd/export"
	"github.com/sarawakflora/fieldwatch/cmd/notify"
	"github.com/sarawakflora/fieldwatch/cmd/seed"
	"github.com/sarawakflora/fieldwatch/cmd/serve"
	"github.com/sarawakflora/fieldwatch/cmd/simulate"
	"github.com/sarawakflora/fieldwatch/cmd/version"
	"github.com/sarawakflora/fieldwatch/internal/buildinfo"
	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// RootCommand creates the fieldwatch command tree. Settings are loaded
// before any subcommand runs, except for commands annotated with
// conf.SkipLoadAnnotation.
func RootCommand(build buildinfo.BuildInfo) *cobra.Command {
	settings := &conf.Settings{}
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "fieldwatch",
		Short:         "Environmental monitoring for endangered flora field stations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the config file (default: search standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding flags: %v", err))
	}

	rootCmd.AddCommand(
		serve.Command(settings, build),
		seed.Command(settings),
		simulate.Command(settings),
		export.Command(settings),
		notify.Command(settings),
		configcmd.Command(settings),
		version.Command(build),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, skip := cmd.Annotations[conf.SkipLoadAnnotation]; skip {
			return nil
		}
		return initialize(settings, configFile, debug)
	}

	return rootCmd
}

// initialize loads the settings into place and sets up the global logger.
func initialize(settings *conf.Settings, configFile string, debug bool) error {
	loaded, err := conf.LoadFrom(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded
	if debug {
		settings.Debug = true
	}

	level := settings.Main.Log.Level
	if settings.Debug {
		level = "debug"
	}
	if _, err := logger.Init(logger.Config{
		Level:    level,
		Format:   settings.Main.Log.Format,
		Path:     settings.Main.Log.Path,
		Timezone: settings.Main.Log.Timezone,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
