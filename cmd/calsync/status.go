package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"calsync/internal/state"
)

type statusView struct {
	LastSync      *time.Time `json:"last_sync" yaml:"last_sync"`
	SinceLastSync string     `json:"since_last_sync,omitempty" yaml:"since_last_sync,omitempty"`
	Calendars     []string   `json:"calendars" yaml:"calendars"`
	StateFile     string     `json:"state_file" yaml:"state_file"`
}

func newStatusCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show when the last sync ran and which calendars are tracked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := a.cursors()
			snap, err := fs.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			view := newStatusView(snap, fs.Path(), time.Now())
			return writeStatus(cmd.OutOrStdout(), view, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func newStatusView(snap state.Snapshot, path string, now time.Time) statusView {
	v := statusView{LastSync: snap.LastSyncDate, StateFile: path, Calendars: []string{}}
	for id := range snap.CalendarSyncTokens {
		v.Calendars = append(v.Calendars, id)
	}
	slices.Sort(v.Calendars)
	if snap.LastSyncDate != nil {
		v.SinceLastSync = now.Sub(*snap.LastSyncDate).Round(time.Second).String()
	}
	return v
}

func writeStatus(w io.Writer, v statusView, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	if v.LastSync == nil {
		fmt.Fprintln(w, "Last sync:  never")
	} else {
		fmt.Fprintf(w, "Last sync:  %s (%s ago)\n", v.LastSync.Local().Format(time.DateTime), v.SinceLastSync)
	}
	fmt.Fprintf(w, "Calendars:  %d tracked\n", len(v.Calendars))
	for _, id := range v.Calendars {
		fmt.Fprintf(w, "  - %s\n", id)
	}
	fmt.Fprintf(w, "State file: %s\n", v.StateFile)
	return nil
}
