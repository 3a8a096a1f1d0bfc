// Package notify provides the command sending a test push notification.
package notify

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/events"
	"github.com/sarawakflora/fieldwatch/internal/notification"
)

var severities = []string{
	entities.SeverityLow,
	entities.SeverityMedium,
	entities.SeverityHigh,
	entities.SeverityCritical,
}

// Command returns a cobra command that pushes a synthetic opened alert
// through the configured push services.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		severity  string
		deviceID  string
		alertType string
		message   string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test push notification",
		Long: `Push a synthetic opened alert through the configured notification
services. The severity filter applies, so a test below
notification.push.minseverity is not delivered.

Examples:
  # Critical test alert
  fieldwatch notify --severity=critical

  # Custom message for a specific device
  fieldwatch notify --device=DEV-014 --type=Humidity --message="Humidity 99% above safe maximum"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(severities, severity) {
				return fmt.Errorf("invalid severity: %s", severity)
			}
			push := settings.Notification.Push
			if !push.Enabled {
				return fmt.Errorf("push notifications are disabled, set notification.push.enabled")
			}

			dispatcher, err := notification.NewDispatcherFromSettings(&push, nil)
			if err != nil {
				return err
			}

			if message == "" {
				message = fmt.Sprintf("Test %s alert from fieldwatch (%s)", alertType, deviceID)
			}
			ev := events.NewAlertEvent(events.AlertOpened, &entities.Alert{
				DeviceID:  deviceID,
				AlertType: alertType,
				Severity:  severity,
				Message:   message,
				CreatedAt: time.Now().UTC(),
			}, "cli")

			if err := dispatcher.ProcessEvent(ev); err != nil {
				return fmt.Errorf("push failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification processed: device=%s severity=%s\n", deviceID, severity)
			return nil
		},
	}

	cmd.Flags().StringVar(&severity, "severity", entities.SeverityHigh, "Alert severity: low|medium|high|critical")
	cmd.Flags().StringVar(&deviceID, "device", "DEV-TEST", "Device ID shown in the notification")
	cmd.Flags().StringVar(&alertType, "type", "SoilMoisture", "Alert type shown in the notification")
	cmd.Flags().StringVar(&message, "message", "", "Notification body")

	return cmd
}
