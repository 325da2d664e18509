package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/calendar/caldav"
	"github.com/teemow/calview/internal/calendar/google"
	"github.com/teemow/calview/internal/config"
	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/logging"
	"github.com/teemow/calview/internal/server"
	"github.com/teemow/calview/internal/store"
)

// loadConfig reads the config file named by --config and applies the
// environment on top of it.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// openTokenStore opens the token store selected by the config
func openTokenStore(cfg config.Config) (auth.TokenStore, error) {
	switch cfg.Storage.TokenStore {
	case config.TokenStoreMemory:
		return auth.NewMemoryStore(), nil
	case config.TokenStoreBolt:
		path, err := cfg.BoltPath()
		if err != nil {
			return nil, err
		}
		return auth.OpenBoltStore(path)
	default:
		dir, err := cfg.TokenDir()
		if err != nil {
			return nil, err
		}
		return auth.NewFileStore(dir), nil
	}
}

// newAuthService creates and initializes the auth service. The caller owns
// the returned service and must Close it.
func newAuthService(ctx context.Context, cfg config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) (*auth.Service, error) {
	tokenStore, err := openTokenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	opts := []auth.Option{auth.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, auth.WithMetrics(metrics))
	}
	svc := auth.New(cfg.Provider, tokenStore, opts...)
	if err := svc.Init(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	return svc, nil
}

// newBackendFactory returns the factory creating the calendar backend of a
// signed-in account.
func newBackendFactory(cfg config.Config, loc *time.Location, logger *slog.Logger) server.BackendFactory {
	newGoogle := func(ctx context.Context, ts oauth2.TokenSource) (calendar.Backend, error) {
		b, err := google.New(ctx, ts, google.Config{
			CalendarID: cfg.Backend.CalendarID,
			Location:   loc,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	newCalDAV := func(ctx context.Context) (calendar.Backend, error) {
		davCfg := cfg.Backend.CalDAV
		davCfg.UserAgent = "calview/" + version
		b, err := caldav.New(ctx, davCfg, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	return func(ctx context.Context, _ auth.Account, ts oauth2.TokenSource) (calendar.Backend, error) {
		switch cfg.Backend.Kind {
		case config.BackendCalDAV:
			return newCalDAV(ctx)
		case config.BackendMulti:
			primary, err := newGoogle(ctx, ts)
			if err != nil {
				return nil, err
			}
			secondary, err := newCalDAV(ctx)
			if err != nil {
				return nil, err
			}
			multi, err := calendar.NewMulti(primary, secondary)
			if err != nil {
				return nil, err
			}
			return multi, nil
		default:
			return newGoogle(ctx, ts)
		}
	}
}

// app holds the components shared by the HTTP and stdio transports
type app struct {
	cfg     config.Config
	auth    *auth.Service
	cache   *store.Storage
	sc      *server.ServerContext
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// newApp wires the auth service, the event cache and the server context.
// metrics may be nil when instrumentation is disabled.
func newApp(ctx context.Context, cfg config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layoutOpts, err := cfg.LayoutOptions()
	if err != nil {
		return nil, err
	}

	authSvc, err := newAuthService(ctx, cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, auth: authSvc, metrics: metrics, logger: logger}

	scOpts := []server.ContextOption{
		server.WithLayoutOptions(layoutOpts),
		server.WithLogger(logger),
		server.WithAllowWrite(cfg.AllowWrite),
	}
	if metrics != nil {
		scOpts = append(scOpts, server.WithMetrics(metrics))
	}
	if cfg.Telemetry.Enabled {
		scOpts = append(scOpts, server.WithAuditLogger(
			instrumentation.NewAuditLogger(logger, cfg.Telemetry.AuditLogging)))
	}
	if cfg.Storage.CachePath != "" {
		a.cache, err = store.Open(ctx, cfg.Storage.CachePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open event cache: %w", err)
		}
		scOpts = append(scOpts, server.WithEventCache(a.cache))
	}

	a.sc, err = server.NewServerContext(ctx, authSvc,
		newBackendFactory(cfg, layoutOpts.Location, logger), scOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return a, nil
}

// Close releases everything newApp opened
func (a *app) Close() {
	if a.sc != nil {
		if err := a.sc.Shutdown(); err != nil {
			a.logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("error closing event cache", logging.Err(err))
		}
	}
	if err := a.auth.Close(); err != nil {
		a.logger.Warn("error closing auth service", logging.Err(err))
	}
}
