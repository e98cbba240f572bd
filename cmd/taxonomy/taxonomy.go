// Package taxonomy implements the command that prints the track and type
// mapping between the legacy and new vocabularies.
package taxonomy

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/challenge-migration/internal/taxonomy"
)

// Command returns the taxonomy command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the legacy to new track and type mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Print(cmd.OutOrStdout())
		},
	}
}

// Print writes one row per legacy track and sub-track. Sub-tracks whose
// mapping depends on the task flag get a second row.
func Print(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRACK\tSUB-TRACK\tTASK\tNEW TRACK\tNEW TYPE")
	for _, l := range taxonomy.LegacyCombinations() {
		challenge, ok := taxonomy.ToNew(l.Track, l.SubTrack, false)
		if !ok {
			continue
		}
		task, _ := taxonomy.ToNew(l.Track, l.SubTrack, true)

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Track, l.SubTrack, "-", challenge.Track, challenge.Type)
		if task.TypeID != challenge.TypeID || task.TrackID != challenge.TrackID {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Track, l.SubTrack, "yes", task.Track, task.Type)
		}
	}
	return w.Flush()
}
