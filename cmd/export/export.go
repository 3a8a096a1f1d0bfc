// Package export provides the command writing alerts to a spreadsheet.
package export

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	xlsx "github.com/sarawakflora/fieldwatch/internal/export"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// Command creates the export command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		output   string
		filter   repository.AlertFilter
		timezone string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export alerts to an Excel workbook",
		Example: `  fieldwatch export --status open --output open-alerts.xlsx
  fieldwatch export --device DEV-001 --timezone Asia/Kuching`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch filter.Status {
			case "", repository.AlertStatusOpen, repository.AlertStatusResolved:
			default:
				return fmt.Errorf("invalid status %q: expected open or resolved", filter.Status)
			}
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone: %w", err)
			}

			store, err := datastore.Open(&settings.Database)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Global().Module("export").Warn("failed to close store", logger.Error(err))
				}
			}()

			alerts, err := store.Alerts.ListAlerts(cmd.Context(), filter)
			if err != nil {
				return err
			}

			f, err := os.Create(output) //nolint:gosec // operator chosen output path
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := xlsx.WriteAlerts(f, alerts, loc); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d alerts to %s\n", len(alerts), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "alerts.xlsx", "Workbook to write")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only open or resolved alerts")
	cmd.Flags().StringVar(&filter.DeviceID, "device", "", "Only alerts of this device")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Newest N alerts, 0 for all")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Timezone for timestamps")

	return cmd
}
