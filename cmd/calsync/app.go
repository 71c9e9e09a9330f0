package main

import (
	"context"
	"fmt"
	"log/slog"

	"calsync/internal/auth"
	"calsync/internal/config"
	"calsync/internal/remote/google"
	"calsync/internal/service/syncengine"
	"calsync/internal/state"
	"calsync/internal/store"
	"calsync/internal/store/icsdir"
	"calsync/internal/store/sqlstore"
)

// app carries what every command needs once flags are parsed.
type app struct {
	configFile string

	cfg config.Config
	log *slog.Logger
}

func (a *app) init() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.log = newLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(a.log)
	a.log.Debug("config loaded",
		slog.String("config_file", cfg.ConfigFile),
		slog.String("store_driver", cfg.StoreDriver),
	)
	return nil
}

func (a *app) cursors() *state.FileStore {
	return state.NewFileStore(a.cfg.StatePath)
}

func (a *app) secrets() *auth.SecretStore {
	return auth.NewSecretStore(a.cfg.CredentialsPath)
}

func (a *app) openCalendarStore(ctx context.Context) (store.CalendarStore, error) {
	switch a.cfg.StoreDriver {
	case config.StoreICS:
		a.log.Info("opening calendar directory", slog.String("path", a.cfg.StorePath))
		s, err := icsdir.Open(a.cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open calendar directory: %w", err)
		}
		return s, nil
	case config.StorePostgres:
		a.log.Info("connecting to database", databaseLogArgs(a.cfg.DatabaseURL)...)
		return a.openSQL(ctx, sqlstore.DriverPostgres, a.cfg.DatabaseURL)
	default:
		a.log.Info("opening calendar database", slog.String("path", a.cfg.StorePath))
		return a.openSQL(ctx, sqlstore.DriverSQLite, a.cfg.StorePath)
	}
}

func (a *app) openSQL(ctx context.Context, driver, dsn string) (store.CalendarStore, error) {
	db, err := sqlstore.Open(driver, dsn, sqlstore.PoolConfig{
		MaxOpenConns:    a.cfg.DBMaxOpenConns,
		MaxIdleConns:    a.cfg.DBMaxIdleConns,
		ConnMaxLifetime: a.cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: a.cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("open calendar database: %w", err)
	}
	if err := sqlstore.Migrate(ctx, db); err != nil {
		_ = sqlstore.Close(db)
		return nil, fmt.Errorf("migrate calendar database: %w", err)
	}
	return sqlstore.NewCalendarRepo(db), nil
}

func (a *app) newRemote(ctx context.Context) (*google.Client, error) {
	provider := auth.NewProvider(a.secrets(), auth.ProviderOptions{
		ClientID:     a.cfg.GoogleClientID,
		ClientSecret: a.cfg.GoogleClientSecret,
		Logger:       a.log.With(slog.String("component", "auth")),
	})
	return google.New(ctx, provider, google.Options{RequestTimeout: a.cfg.RequestTimeout})
}

func (a *app) engineOptions() syncengine.Options {
	return syncengine.Options{
		CalendarPrefix:  a.cfg.CalendarPrefix,
		LookupWindow:    a.cfg.LookupWindow,
		FullSyncHorizon: a.cfg.FullSyncHorizon,
		PageSize:        a.cfg.PageSize,
		Logger:          a.log,
	}
}

// newEngine wires a sync engine; the returned store must be closed by the
// caller.
func (a *app) newEngine(ctx context.Context) (*syncengine.Engine, store.CalendarStore, error) {
	rc, err := a.newRemote(ctx)
	if err != nil {
		return nil, nil, err
	}
	cs, err := a.openCalendarStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return syncengine.New(rc, cs, a.cursors(), a.engineOptions()), cs, nil
}

func (a *app) closeStore(cs store.CalendarStore) {
	if err := cs.Close(); err != nil {
		a.log.Warn("calendar store close failed", slog.Any("err", err))
	}
}
