// Package serve provides the command running the fieldwatch service.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/sarawakflora/fieldwatch/internal/app"
	"github.com/sarawakflora/fieldwatch/internal/buildinfo"
	"github.com/sarawakflora/fieldwatch/internal/conf"
)

// Command creates the serve command.
func Command(settings *conf.Settings, build buildinfo.BuildInfo) *cobra.Command {
	var (
		port     string
		basePath string
		mqtt     bool
		ingest   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring service",
		Long: `Start the HTTP API, the alert evaluator and, when enabled, the MQTT
bridge and push notifications. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("port") {
				settings.WebServer.Port = port
			}
			if flags.Changed("basepath") {
				settings.WebServer.BasePath = basePath
			}
			if flags.Changed("mqtt") {
				settings.MQTT.Enabled = mqtt
			}
			if flags.Changed("mqtt-ingest") {
				settings.MQTT.Ingest = ingest
			}
			return app.Run(cmd.Context(), settings, build)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "HTTP listen port (overrides webserver.port)")
	cmd.Flags().StringVar(&basePath, "basepath", "", "Prefix for every API route")
	cmd.Flags().BoolVar(&mqtt, "mqtt", false, "Publish alert events to the MQTT broker")
	cmd.Flags().BoolVar(&ingest, "mqtt-ingest", false, "Accept sensor readings from MQTT")

	return cmd
}
