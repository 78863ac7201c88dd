package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eventfinder/agent/internal/eventsync"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the local cache with the remote event API once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var result eventsync.SyncResult
			if reset {
				result, err = a.coordinator.ResetAndSync(cmd.Context())
			} else {
				result, err = a.coordinator.SyncEvents(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			if !result.Reachable {
				fmt.Fprintln(out, "Remote event API unreachable; showing cached events.")
				return nil
			}
			fmt.Fprintf(out, "Synced %d events at %s\n", result.EventsFetched, result.SyncedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "clear the cache before syncing (requires the remote API)")
	return cmd
}
