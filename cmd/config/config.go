// Package config provides commands to create and inspect configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
)

const redacted = "[REDACTED]"

// Command creates the config command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration",
	}
	cmd.AddCommand(initCommand(), showCommand(settings))
	return cmd
}

func initCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write the default configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{conf.SkipLoadAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := conf.DefaultConfigYAML()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("error creating config directory: %w", err)
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Long: `Load and validate the configuration the way serve does, including
environment overrides, and print the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(Redact(settings))
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// Redact returns a copy of s with credentials replaced and service URLs
// anonymized.
func Redact(s *conf.Settings) *conf.Settings {
	out := *s
	if out.Database.MySQL.Password != "" {
		out.Database.MySQL.Password = redacted
	}
	if out.WebServer.OperatorToken != "" {
		out.WebServer.OperatorToken = redacted
	}
	if out.MQTT.Password != "" {
		out.MQTT.Password = redacted
	}
	if out.Telemetry.DSN != "" {
		out.Telemetry.DSN = privacy.AnonymizeURL(out.Telemetry.DSN)
	}
	urls := make([]string, len(s.Notification.Push.URLs))
	for i, u := range s.Notification.Push.URLs {
		urls[i] = privacy.AnonymizeURL(u)
	}
	out.Notification.Push.URLs = urls
	return &out
}
