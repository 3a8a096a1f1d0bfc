// Package simulate provides the command feeding synthetic readings to a
// running server.
package simulate

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/simulator"
)

// Command creates the simulate command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		url      string
		cfg      simulator.Config
		timeout  time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Post synthetic sensor readings to a running server",
		Long: `Generate plausible readings for the given devices and post them to the
sensor-data endpoint. A share of readings breach the default bands so
alerts open and recover.`,
		Example: `  fieldwatch simulate --devices DEV-001,DEV-014 --rounds 10 --breach-rate 0.3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = DefaultURL(settings)
			}
			cfg.Interval = interval
			if cfg.Seed == 0 {
				cfg.Seed = uint64(time.Now().UnixNano())
			}

			client := simulator.NewClient(url, timeout)
			sum, err := simulator.Run(cmd.Context(), client, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d readings (%d rejected): %d alerts opened, %d resolved\n",
				sum.Sent, sum.Failed, sum.AlertsOpened, sum.AlertsResolved)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "API root URL (default: local server from config)")
	cmd.Flags().StringSliceVar(&cfg.Devices, "devices", []string{"DEV-001", "DEV-014", "DEV-020"}, "Device IDs to simulate")
	cmd.Flags().IntVarP(&cfg.Rounds, "rounds", "n", 5, "Readings per device, 0 runs until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Pause between rounds")
	cmd.Flags().Float64Var(&cfg.BreachRate, "breach-rate", 0.2, "Share of readings outside the safe bands")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0, "Random seed (default: time based)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "HTTP request timeout")

	return cmd
}

// DefaultURL points at the server described by settings on localhost.
func DefaultURL(settings *conf.Settings) string {
	port := settings.WebServer.Port
	if port == "" {
		port = "3000"
	}
	return "http://" + net.JoinHostPort("localhost", port) + settings.WebServer.BasePath
}
