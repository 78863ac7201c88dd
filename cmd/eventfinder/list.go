package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the cached events in date order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.coordinator.ListEvents(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}

			if len(events) == 0 {
				fmt.Fprintln(out, "No cached events.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tNAME\tLOCATION\tSOURCE")
			for _, e := range events {
				id := "-"
				if e.ID != nil {
					id = fmt.Sprint(*e.ID)
				}
				source := "synced"
				if e.IsFromCache {
					source = "cache"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", id, e.Date, e.Name, e.Location, source)
			}
			return tw.Flush()
		},
	}
}
