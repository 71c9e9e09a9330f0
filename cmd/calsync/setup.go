package main

import (
	"github.com/spf13/cobra"

	"calsync/internal/auth"
)

func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Authorize read access to your Google calendars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &auth.Setup{
				Store:        a.secrets(),
				In:           cmd.InOrStdin(),
				Out:          cmd.OutOrStdout(),
				ClientID:     a.cfg.GoogleClientID,
				ClientSecret: a.cfg.GoogleClientSecret,
				RedirectURL:  a.cfg.GoogleRedirectURL,
			}
			return s.Run(cmd.Context())
		},
	}
}
