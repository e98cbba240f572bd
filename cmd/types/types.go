// Package types implements the challenge type migration command.
package types

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/challenge-migration/cmd/migrate"
	"github.com/tphakala/challenge-migration/internal/app"
	"github.com/tphakala/challenge-migration/internal/buildinfo"
	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/migration"
)

// Command returns the types command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "types",
		Short: "Migrate challenge types",
		Long: `Copy the legacy challenge types into the document store and the search index.
Types already stored are skipped; retry-failed rewrites only the types in the error ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migration.ParseMode(mode)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			a, err := app.New(ctx, settings, build)
			if err != nil {
				cancel()
				return err
			}
			defer a.Close()
			defer cancel()

			a.Start(ctx)
			summary, runErr := a.Runner.MigrateChallengeTypes(ctx, m)
			if err := a.Notifier.RunFinished(context.WithoutCancel(ctx), "types", summary, runErr); err != nil {
				a.Log.Warn("run notification failed", logger.Error(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return migrate.Result(summary, runErr)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(migration.ModeNormal), "Run mode: normal or retry-failed")
	return cmd
}
