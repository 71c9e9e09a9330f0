package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"calsync/internal/service/syncengine"
)

func newResetCmd(a *app) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget sync cursors so the next run is a full sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if purge {
				cs, err := a.openCalendarStore(ctx)
				if err != nil {
					return err
				}
				defer a.closeStore(cs)

				// Purge only touches the local store.
				purged, err := syncengine.New(nil, cs, a.cursors(), a.engineOptions()).Purge(ctx)
				for _, p := range purged {
					fmt.Fprintf(out, "Deleted %d events from %s\n", p.Deleted, p.Name)
				}
				if err != nil {
					return err
				}
			}

			if err := a.cursors().Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Sync state cleared; the next sync fetches everything again.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "also delete every event in the synced local calendars")
	return cmd
}
