package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/honeycal/internal/ics"
)

// NewExportCommand creates the export command: render the merged view as
// an iCalendar feed.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the calendar as iCalendar",
		Long: `Export the merged calendar view as an iCalendar (.ics) feed. The
reconciled view is used when the remote service is reachable, the local
view otherwise.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := buildEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.LoadEvents(cmd.Context()); err != nil {
				return err
			}

			feed, err := ics.Export(eng.View().Snapshot().Events)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				fmt.Fprint(cmd.OutOrStdout(), feed)
				return nil
			}
			return os.WriteFile(out, []byte(feed), 0o644)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
