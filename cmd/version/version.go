package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/challenge-migration/internal/buildinfo"
)

// Command creates a new cobra.Command to print build information.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of challenge-migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build)
			return err
		},
	}
}
