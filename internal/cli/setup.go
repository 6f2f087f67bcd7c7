package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/honeycal/internal/config"
	"github.com/roach88/honeycal/internal/engine"
	"github.com/roach88/honeycal/internal/event"
	"github.com/roach88/honeycal/internal/localstore"
	"github.com/roach88/honeycal/internal/remote"
)

// buildEngine wires the local store, remote client, and engine from the
// config file. The returned cleanup closes the store.
func buildEngine(opts *RootOptions, engineOpts ...engine.Option) (*engine.Engine, config.Config, func() error, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	store, err := localstore.Open(cfg.DatabasePath)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	sess := cfg.Session()
	client := remote.New(cfg.ServerURL, sess)

	engineOpts = append([]engine.Option{
		engine.WithRemoteTimeout(cfg.RemoteTimeout),
	}, engineOpts...)

	eng := engine.New(store, client, sess.Caller, engineOpts...)
	return eng, cfg, store.Close, nil
}

// printEvents writes the events in the selected output format.
func printEvents(w io.Writer, events []event.Event, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Fprintln(w, "no events")
		return nil
	}
	for _, ev := range events {
		when := ev.Date
		if ev.StartTime != "" {
			when += " " + ev.StartTime
			if ev.EndTime != "" {
				when += "-" + ev.EndTime
			}
		} else {
			when += " (all day)"
		}

		marker := " "
		if ev.Status == event.StatusPending {
			marker = "*" // not yet accepted by the remote store
		}

		fmt.Fprintf(w, "%s %-6s %-22s %s", marker, idLabel(ev), when, ev.Title)
		if ev.Location != "" {
			fmt.Fprintf(w, " @ %s", ev.Location)
		}
		if ev.CreatedByName != "" {
			fmt.Fprintf(w, " (%s)", ev.CreatedByName)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func idLabel(ev event.Event) string {
	if ev.ID.Local != 0 {
		return fmt.Sprintf("#%d", ev.ID.Local)
	}
	return "-"
}
