package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreICS      = "ics"
)

type Config struct {
	LogLevel  string
	LogFormat string

	StatePath   string
	StoreDriver string
	StorePath   string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	CalendarPrefix  string
	LookupWindow    time.Duration
	FullSyncHorizon time.Duration
	PageSize        int

	CredentialsPath    string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	RequestTimeout     time.Duration

	WatchSchedule   string
	HealthAddr      string
	ShutdownTimeout time.Duration

	// ConfigFile is the file the values were read from, if any.
	ConfigFile string
}

// Load reads configuration from the environment and an optional YAML file.
// An explicit configFile must exist; otherwise config.yaml in the user
// config directory is used when present.
func Load(configFile string) (Config, error) {
	dir, err := DefaultDir()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("CALSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("state.path", filepath.Join(dir, "state.json"))
	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.path", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("sync.calendar_prefix", "GCal: ")
	v.SetDefault("sync.lookup_window", "8760h")
	v.SetDefault("sync.full_sync_horizon", "8760h")
	v.SetDefault("sync.page_size", 250)
	v.SetDefault("google.credentials_path", filepath.Join(dir, "credentials.json"))
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "http://127.0.0.1")
	v.SetDefault("remote.request_timeout", "30s")
	v.SetDefault("watch.schedule", "@every 15m")
	v.SetDefault("watch.health_addr", "127.0.0.1:50051")
	v.SetDefault("shutdown.timeout", "10s")

	_ = v.BindEnv("log.level", "CALSYNC_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("database.url", "CALSYNC_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("google.client_id", "CALSYNC_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google.client_secret", "CALSYNC_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	_ = v.BindEnv("watch.health_addr", "CALSYNC_WATCH_HEALTH_ADDR", "HEALTH_ADDR")
	_ = v.BindEnv("shutdown.timeout", "CALSYNC_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	durations := map[string]*time.Duration{}
	cfg := Config{
		LogLevel:           v.GetString("log.level"),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		StatePath:          v.GetString("state.path"),
		StoreDriver:        strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
		StorePath:          strings.TrimSpace(v.GetString("store.path")),
		DatabaseURL:        v.GetString("database.url"),
		DBMaxOpenConns:     v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:     v.GetInt("database.max_idle_conns"),
		CalendarPrefix:     v.GetString("sync.calendar_prefix"),
		PageSize:           v.GetInt("sync.page_size"),
		CredentialsPath:    v.GetString("google.credentials_path"),
		GoogleClientID:     strings.TrimSpace(v.GetString("google.client_id")),
		GoogleClientSecret: strings.TrimSpace(v.GetString("google.client_secret")),
		GoogleRedirectURL:  strings.TrimSpace(v.GetString("google.redirect_url")),
		WatchSchedule:      strings.TrimSpace(v.GetString("watch.schedule")),
		HealthAddr:         strings.TrimSpace(v.GetString("watch.health_addr")),
		ConfigFile:         v.ConfigFileUsed(),
	}
	durations["database.conn_max_lifetime"] = &cfg.DBConnMaxLifetime
	durations["database.conn_max_idle_time"] = &cfg.DBConnMaxIdleTime
	durations["sync.lookup_window"] = &cfg.LookupWindow
	durations["sync.full_sync_horizon"] = &cfg.FullSyncHorizon
	durations["remote.request_timeout"] = &cfg.RequestTimeout
	durations["shutdown.timeout"] = &cfg.ShutdownTimeout
	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if cfg.StorePath == "" {
		switch cfg.StoreDriver {
		case StoreSQLite:
			cfg.StorePath = filepath.Join(dir, "calendars.db")
		case StoreICS:
			cfg.StorePath = filepath.Join(dir, "calendars")
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreSQLite, StoreICS:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database.url is required for the postgres store")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of sqlite, postgres, ics", c.StoreDriver)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", c.LogFormat)
	}
	if c.LookupWindow <= 0 || c.FullSyncHorizon <= 0 {
		return errors.New("sync.lookup_window and sync.full_sync_horizon must be positive")
	}
	if c.PageSize < 1 || c.PageSize > 2500 {
		return fmt.Errorf("sync.page_size %d is outside 1..2500", c.PageSize)
	}
	return nil
}

// DefaultDir is the per-user directory holding state, credentials and the
// default local store. CALSYNC_HOME overrides it.
func DefaultDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("CALSYNC_HOME")); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	return filepath.Join(base, "calsync"), nil
}
