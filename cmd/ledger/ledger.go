// Package ledger implements commands that inspect and reset the error ledger.
package ledger

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/challenge-migration/internal/app"
	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/datastore"
	"github.com/tphakala/challenge-migration/internal/ledger"
)

// Command returns the ledger command with its list and clear subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or reset the error ledger",
	}
	cmd.AddCommand(listCommand(settings), clearCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List failed writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, func(ctx context.Context, store *ledger.Store) error {
				entries, err := store.List(ctx)
				if err != nil {
					return err
				}
				return PrintEntries(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func clearCommand(settings *conf.Settings) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every ledger entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the ledger without --yes")
			}
			return withStore(cmd.Context(), settings, func(ctx context.Context, store *ledger.Store) error {
				n, err := store.Clear(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d ledger entries\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func withStore(ctx context.Context, settings *conf.Settings, fn func(context.Context, *ledger.Store) error) error {
	central, err := app.Logging(settings)
	if err != nil {
		return err
	}
	defer func() { _ = central.Close() }()

	store, db, err := app.OpenLedger(settings.Ledger, central.Module("ledger"))
	if err != nil {
		return err
	}
	defer func() { _ = datastore.Close(db) }()
	return fn(ctx, store)
}

// PrintEntries writes entries as an aligned table.
func PrintEntries(out io.Writer, entries []ledger.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "ledger is empty")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSINK\tATTEMPTS\tUPDATED\tMESSAGE")
	for _, e := range entries {
		key := fmt.Sprint(e.LegacyID)
		if e.ChallengeType != "" {
			key = "type:" + e.ChallengeType
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", key, e.Sink, e.Attempts, e.UpdatedAt.Format(time.DateTime), e.Message)
	}
	return w.Flush()
}
