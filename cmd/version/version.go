// Package version provides the command printing build metadata.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarawakflora/fieldwatch/internal/buildinfo"
	"github.com/sarawakflora/fieldwatch/internal/conf"
)

// Command creates the version command.
func Command(build buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{conf.SkipLoadAnnotation: "true"},
		Args:        cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String(build))
		},
	}
}
