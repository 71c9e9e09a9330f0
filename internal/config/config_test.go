package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CALSYNC_HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.StoreDriver != StoreSQLite {
		t.Fatalf("store driver = %q, want %q", cfg.StoreDriver, StoreSQLite)
	}
	if want := filepath.Join(home, "calendars.db"); cfg.StorePath != want {
		t.Fatalf("store path = %q, want %q", cfg.StorePath, want)
	}
	if want := filepath.Join(home, "state.json"); cfg.StatePath != want {
		t.Fatalf("state path = %q, want %q", cfg.StatePath, want)
	}
	if cfg.CalendarPrefix != "GCal: " {
		t.Fatalf("prefix = %q, want %q", cfg.CalendarPrefix, "GCal: ")
	}
	if cfg.LookupWindow != 365*24*time.Hour || cfg.FullSyncHorizon != 365*24*time.Hour {
		t.Fatalf("windows = %v / %v, want one year", cfg.LookupWindow, cfg.FullSyncHorizon)
	}
	if cfg.PageSize != 250 || cfg.ConfigFile != "" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CALSYNC_HOME", t.TempDir())
	t.Setenv("CALSYNC_STORE_DRIVER", "ics")
	t.Setenv("CALSYNC_SYNC_LOOKUP_WINDOW", "720h")
	t.Setenv("GOOGLE_CLIENT_ID", "from-alias")
	t.Setenv("CALSYNC_WATCH_SCHEDULE", "*/5 * * * *")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.StoreDriver != StoreICS || !strings.HasSuffix(cfg.StorePath, "calendars") {
		t.Fatalf("store = %q %q", cfg.StoreDriver, cfg.StorePath)
	}
	if cfg.LookupWindow != 720*time.Hour {
		t.Fatalf("lookup window = %v, want 720h", cfg.LookupWindow)
	}
	if cfg.GoogleClientID != "from-alias" {
		t.Fatalf("client id = %q, want from-alias", cfg.GoogleClientID)
	}
	if cfg.WatchSchedule != "*/5 * * * *" {
		t.Fatalf("schedule = %q", cfg.WatchSchedule)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CALSYNC_HOME", home)
	path := filepath.Join(home, "config.yaml")
	body := "store:\n  driver: postgres\ndatabase:\n  url: postgres://u:p@db/calsync\nsync:\n  calendar_prefix: \"Work/\"\n  page_size: 100\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ConfigFile != path {
		t.Fatalf("config file = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.StoreDriver != StorePostgres || cfg.DatabaseURL != "postgres://u:p@db/calsync" {
		t.Fatalf("store = %q %q", cfg.StoreDriver, cfg.DatabaseURL)
	}
	if cfg.CalendarPrefix != "Work/" || cfg.PageSize != 100 {
		t.Fatalf("sync = %q %d", cfg.CalendarPrefix, cfg.PageSize)
	}

	t.Setenv("CALSYNC_SYNC_PAGE_SIZE", "50")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.PageSize != 50 {
		t.Fatalf("page size = %d, want env to win over file", cfg.PageSize)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"CALSYNC_STORE_DRIVER": "mysql"}},
		{name: "postgres without url", env: map[string]string{"CALSYNC_STORE_DRIVER": "postgres"}},
		{name: "bad duration", env: map[string]string{"CALSYNC_SYNC_FULL_SYNC_HORIZON": "a year"}},
		{name: "bad log format", env: map[string]string{"CALSYNC_LOG_FORMAT": "xml"}},
		{name: "page size", env: map[string]string{"CALSYNC_SYNC_PAGE_SIZE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CALSYNC_HOME", t.TempDir())
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("CALSYNC_HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
