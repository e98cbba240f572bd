// Package migrate implements the migrate command.
package migrate

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/challenge-migration/internal/app"
	"github.com/tphakala/challenge-migration/internal/buildinfo"
	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/legacy"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/migration"
)

// Command returns the migrate command. Flags override the migration section
// of the settings.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate challenges page by page",
		Long: `Read challenges from the legacy store, transform them and write them to the
document store and the search index.

Examples:
  # Migrate everything created since 2020
  challenge-migration migrate --created-after 2020-01-01

  # Reprocess the challenges recorded in the error ledger
  challenge-migration migrate --mode retry-failed

  # List the ids of the first two pages without writing anything
  challenge-migration migrate --dry-run --max-pages 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyFlags(cmd, &settings.Migration); err != nil {
				return err
			}
			opts, err := Options(&settings.Migration)
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

			if dryRun {
				return DryRun(ctx, a.Fetcher, opts, cmd.OutOrStdout())
			}

			a.Start(ctx)
			summary, runErr := a.Runner.Migrate(ctx, opts)
			if err := a.Notifier.RunFinished(context.WithoutCancel(ctx), "migrate", summary, runErr); err != nil {
				a.Log.Warn("run notification failed", logger.Error(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return Result(summary, runErr)
		},
	}

	flags := cmd.Flags()
	flags.String("mode", "", "Run mode: normal or retry-failed")
	flags.String("created-after", "", "Only migrate challenges created after this date (RFC 3339 or YYYY-MM-DD)")
	flags.Int("batch-size", 0, "Challenges per page")
	flags.Int("skip", 0, "Rows to skip before the first page")
	flags.Int("max-pages", 0, "Stop after this many pages (0: until the source is exhausted)")
	flags.Int("concurrency", 0, "Parallel document writes per page")
	flags.BoolVar(&dryRun, "dry-run", false, "List the legacy ids of each page without writing")

	return cmd
}

// applyFlags copies the flags set on the command line over the settings.
func applyFlags(cmd *cobra.Command, s *conf.MigrationSettings) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("mode") {
		s.Mode, err = flags.GetString("mode")
	}
	if err == nil && flags.Changed("created-after") {
		s.CreatedAfter, err = flags.GetString("created-after")
	}
	if err == nil && flags.Changed("batch-size") {
		s.BatchSize, err = flags.GetInt("batch-size")
	}
	if err == nil && flags.Changed("skip") {
		s.StartSkip, err = flags.GetInt("skip")
	}
	if err == nil && flags.Changed("max-pages") {
		s.MaxPages, err = flags.GetInt("max-pages")
	}
	if err == nil && flags.Changed("concurrency") {
		s.Concurrency, err = flags.GetInt("concurrency")
	}
	return err
}

// Options converts migration settings to loop options.
func Options(s *conf.MigrationSettings) (migration.Options, error) {
	mode, err := migration.ParseMode(s.Mode)
	if err != nil {
		return migration.Options{}, err
	}
	created, err := conf.ParseCreatedAfter(s.CreatedAfter)
	if err != nil {
		return migration.Options{}, err
	}
	return migration.Options{
		Mode:      mode,
		Filter:    legacy.Filter{CreatedAfter: created},
		BatchSize: s.BatchSize,
		StartSkip: s.StartSkip,
		MaxPages:  s.MaxPages,
	}, nil
}

// IDSource lists the legacy ids of a page.
type IDSource interface {
	FetchIDs(ctx context.Context, req legacy.PageRequest) ([]int64, error)
}

// DryRun prints the ids of every page the run would process.
func DryRun(ctx context.Context, src IDSource, opts migration.Options, out io.Writer) error {
	if opts.BatchSize <= 0 {
		opts.BatchSize = migration.DefaultBatchSize
	}
	skip, total := opts.StartSkip, 0
	for page := 1; opts.MaxPages <= 0 || page <= opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := src.FetchIDs(ctx, legacy.PageRequest{Skip: skip, Limit: opts.BatchSize, Filter: opts.Filter})
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}
		fmt.Fprintf(out, "page %d (skip %d): %v\n", page, skip, ids)
		total += len(ids)
		skip += opts.BatchSize
	}
	fmt.Fprintf(out, "%d challenges would be migrated\n", total)
	return nil
}

// Result turns a finished run into the command's error. Failed documents
// make the command fail so schedulers notice; they are in the ledger.
func Result(summary migration.RunSummary, runErr error) error {
	switch {
	case runErr != nil:
		return runErr
	case summary.Cancelled:
		return fmt.Errorf("run cancelled after %d pages", summary.Pages)
	case summary.Failed > 0:
		return fmt.Errorf("%d documents failed, run with --mode retry-failed to reprocess them", summary.Failed)
	default:
		return nil
	}
}
