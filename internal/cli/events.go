package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/honeycal/internal/engine"
	"github.com/roach88/honeycal/internal/event"
)

// NewListCommand creates the list command: one load cycle, then print
// the published view.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List calendar events",
		Long: `List the shared calendar. Local state is shown even when the remote
service is unreachable; pending (not yet synced) events are marked with *.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := buildEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if !localOnly {
				if err := eng.LoadEvents(cmd.Context()); err != nil {
					return err
				}
			} else if err := eng.LoadLocal(cmd.Context()); err != nil {
				return err
			}

			snap := eng.View().Snapshot()
			if err := printEvents(cmd.OutOrStdout(), snap.Events, rootOpts.Format); err != nil {
				return err
			}
			if snap.State == engine.StateOffline && rootOpts.Format == "text" {
				fmt.Fprintln(cmd.OutOrStdout(), "(offline: showing local data only)")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&localOnly, "local", false, "skip the remote fetch, list local state only")
	return cmd
}

// NewAddCommand creates the add command: optimistic local create with
// best-effort remote propagation.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var draft event.Draft

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an event",
		Long: `Add an event to the shared calendar. The event is stored locally
first and propagated to the remote service best-effort; when offline it
stays pending until the next sync.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := buildEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			ev, err := eng.CreateEvent(cmd.Context(), draft)
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), []event.Event{ev}, rootOpts.Format)
		},
	}

	cmd.Flags().StringVar(&draft.Title, "title", "", "event title (required)")
	cmd.Flags().StringVar(&draft.Date, "date", "", "calendar date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&draft.StartTime, "start", "", "start time HH:MM (omit for all-day)")
	cmd.Flags().StringVar(&draft.EndTime, "end", "", "end time HH:MM")
	cmd.Flags().StringVar(&draft.Description, "description", "", "event description")
	cmd.Flags().StringVar(&draft.Location, "location", "", "event location")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

// NewEditCommand creates the edit command: optimistic local update,
// remote propagation only when the record is already synced.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		title, description, date string
		start, end, location     string
	)

	cmd := &cobra.Command{
		Use:           "edit <local-id>",
		Short:         "Edit an event",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			localID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid local id %q", args[0])
			}

			var patch event.Patch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("date") {
				patch.Date = &date
			}
			if cmd.Flags().Changed("start") {
				patch.StartTime = &start
			}
			if cmd.Flags().Changed("end") {
				patch.EndTime = &end
			}
			if cmd.Flags().Changed("location") {
				patch.Location = &location
			}
			if patch.IsZero() {
				return fmt.Errorf("nothing to change")
			}

			eng, _, cleanup, err := buildEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			ev, err := eng.UpdateEvent(cmd.Context(), localID, patch)
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), []event.Event{ev}, rootOpts.Format)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&date, "date", "", "new date YYYY-MM-DD")
	cmd.Flags().StringVar(&start, "start", "", "new start time HH:MM (empty makes the event all-day)")
	cmd.Flags().StringVar(&end, "end", "", "new end time HH:MM")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&location, "location", "", "new location")

	return cmd
}

// NewRemoveCommand creates the remove command: remote-first delete with
// local rollback on hard failure.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "remove <local-id>",
		Short:         "Remove an event",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			localID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid local id %q", args[0])
			}

			eng, _, cleanup, err := buildEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.DeleteEvent(cmd.Context(), localID); err != nil {
				return err
			}
			if rootOpts.Format == "text" {
				fmt.Fprintf(cmd.OutOrStdout(), "removed #%d\n", localID)
			}
			return nil
		},
	}
	return cmd
}

// NewSyncCommand creates the sync command: flush pending records through
// the bulk-sync operation and reload.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sync",
		Short:         "Flush pending events to the remote service",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := buildEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.SyncEvents(cmd.Context()); err != nil {
				return err
			}
			snap := eng.View().Snapshot()
			return printEvents(cmd.OutOrStdout(), snap.Events, rootOpts.Format)
		},
	}
	return cmd
}
