package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"calsync/internal/service/syncengine"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull changes from every selected calendar (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, a)
		},
	}
}

func runSync(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	engine, cs, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	defer a.closeStore(cs)

	report, err := engine.Run(ctx)
	if err == nil || len(report.Calendars) > 0 {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

func printReport(w io.Writer, r syncengine.Report) {
	if len(r.Calendars) == 0 {
		fmt.Fprintln(w, "No calendars synced.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALENDAR\tCREATED\tUPDATED\tDELETED\tUNCHANGED\t")
	for _, c := range r.Calendars {
		name := c.Name
		if c.FullSync {
			name += " (full)"
		}
		if c.Err != nil {
			fmt.Fprintf(tw, "%s\tfailed: %v\t\t\t\t\n", name, c.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t\n", name, c.Created, c.Updated, c.Deleted, c.Unchanged)
	}
	t := r.Totals()
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t%d\t\n", t.Created, t.Updated, t.Deleted, t.Unchanged)
	_ = tw.Flush()
}
