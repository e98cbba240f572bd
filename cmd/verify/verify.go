// Package verify implements the post-migration verification command.
package verify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/challenge-migration/internal/app"
	"github.com/tphakala/challenge-migration/internal/buildinfo"
	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/legacy"
	"github.com/tphakala/challenge-migration/internal/verify"
)

// Command returns the verify command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		createdAfter string
		batchSize    int
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every legacy challenge reached both sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("created-after") {
				createdAfter = settings.Migration.CreatedAfter
			}
			created, err := conf.ParseCreatedAfter(createdAfter)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			v := verify.New(a.Fetcher, a.Index, a.Docs, settings.DocStore.ChallengeTable, batchSize, a.Log)
			report, err := v.Verify(cmd.Context(), legacy.Filter{CreatedAfter: created})
			if err != nil {
				return err
			}
			report.Print(cmd.OutOrStdout())
			if !report.OK() {
				return fmt.Errorf("verification failed: %d missing from the search index, %d missing from the document store",
					len(report.MissingFromIndex), len(report.MissingFromStore))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&createdAfter, "created-after", "", "Only verify challenges created after this date (default: migration.createdafter)")
	cmd.Flags().IntVar(&batchSize, "batch-size", verify.DefaultBatchSize, "Ids per lookup")
	return cmd
}
