package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"calsync/internal/auth"
	"calsync/internal/config"
	"calsync/internal/store"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "calsync: %v\n", err)
	if hint := remediationHint(err, a.cfg); hint != "" {
		fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "calsync",
		Short: "Pull Google Calendar events into a local calendar store",
		Long: `calsync copies events from your Google calendars into local calendars,
one way. Each run only transfers what changed since the previous run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, a)
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML config file")

	root.AddCommand(
		newSyncCmd(a),
		newStatusCmd(a),
		newResetCmd(a),
		newSetupCmd(a),
		newWatchCmd(a),
	)
	return root
}

// remediationHint returns advice for the failures a user can fix alone.
func remediationHint(err error, cfg config.Config) string {
	var credErr *auth.CredentialError
	switch {
	case errors.As(err, &credErr):
		return "run 'calsync setup' to authorize read access to your Google calendars"
	case errors.Is(err, store.ErrAccessDenied):
		where := cfg.StorePath
		if cfg.StoreDriver == config.StorePostgres {
			where = "the configured database"
		}
		if where == "" {
			return "check the permissions of the local calendar store"
		}
		return fmt.Sprintf("grant calsync read and write access to %s, or point store.path (CALSYNC_STORE_PATH) elsewhere", where)
	case errors.Is(err, store.ErrNoStorage):
		return "set store.path (CALSYNC_STORE_PATH) to a writable location"
	}
	return ""
}

func newLogger(format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(h).With(slog.String("service", "calsync"))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
