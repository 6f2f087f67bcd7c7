package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/roach88/honeycal/internal/realtime"
)

// NewRunCommand creates the run command: the long-lived client daemon.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		Long: `Run the client daemon: load local state, connect the realtime channel,
and reconcile with the remote service on the configured schedule.

Partner changes arriving over the realtime channel trigger an immediate
reconciliation; the cron schedule is the fallback path that also flushes
events created while offline.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(rootOpts, cmd)
		},
	}
	return cmd
}

func runDaemon(rootOpts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	eng, cfg, cleanup, err := buildEngine(rootOpts)
	if err != nil {
		return err
	}
	defer cleanup()

	// The realtime client needs the engine for reload triggers, and the
	// engine needs the client to emit its own confirmed changes.
	rt := realtime.New(cfg.WebsocketURL, cfg.Session(), eng)
	eng.SetNotifier(rt)
	defer rt.Close()

	// First cycle: local state is visible immediately, remote merge
	// follows best-effort.
	if err := eng.LoadEvents(ctx); err != nil {
		return err
	}

	if err := rt.Connect(ctx); err != nil {
		slog.Error("realtime channel unavailable", "err", err)
	}

	sched := cron.New()
	_, err = sched.AddFunc(cfg.SyncCron, func() {
		if err := eng.SyncEvents(ctx); err != nil {
			slog.Error("scheduled sync failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sync_cron %q: %w", cfg.SyncCron, err)
	}
	sched.Start()
	defer sched.Stop()

	slog.Info("daemon running",
		"db", cfg.DatabasePath,
		"server", cfg.ServerURL,
		"sync_cron", cfg.SyncCron,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	slog.Info("daemon stopping")
	return nil
}
