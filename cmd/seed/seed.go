// Package seed provides the command loading demo species, devices and
// observations into the store.
package seed

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// Command creates the seed command.
func Command(settings *conf.Settings) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load species, devices and observations from a seed file",
		Long: `Insert the rows of a seed file that are not in the store yet. Without
--file the built-in Sarawak demo data is used. Running it twice is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settings.Seed.Path
			if cmd.Flags().Changed("file") {
				path = file
			}

			data, err := datastore.LoadSeed(path)
			if err != nil {
				return err
			}

			store, err := datastore.Open(&settings.Database)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Global().Module("seed").Warn("failed to close store", logger.Error(err))
				}
			}()

			res, err := data.Apply(cmd.Context(), store)
			if err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seed applied: %d species, %d devices, %d observations added\n",
				res.Species, res.Devices, res.Observations)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed YAML file (default: seed.path or built-in demo data)")

	return cmd
}
