// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/revlens/revlens/adapters/clock"
	revhttp "github.com/revlens/revlens/adapters/http"
	"github.com/revlens/revlens/adapters/http/admin"
	"github.com/revlens/revlens/adapters/http/meter"
	"github.com/revlens/revlens/adapters/idgen"
	"github.com/revlens/revlens/adapters/memory"
	"github.com/revlens/revlens/adapters/metrics"
	"github.com/revlens/revlens/adapters/postgres"
	"github.com/revlens/revlens/adapters/pricing"
	"github.com/revlens/revlens/adapters/rediscache"
	"github.com/revlens/revlens/adapters/sqlite"
	"github.com/revlens/revlens/app"
	"github.com/revlens/revlens/config"
	"github.com/revlens/revlens/domain/tier"
	"github.com/revlens/revlens/ports"
)

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath points at the YAML config file. Empty falls back to
	// environment variables.
	ConfigPath string
	// HotReload watches the config file and applies reloadable fields
	// without a restart.
	HotReload bool
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	Metrics    *metrics.Collector
	HTTPServer *http.Server
	Reports    *app.ReportService

	// Stores, shared by the HTTP surface and the CLI commands.
	Subscribers ports.SubscriberStore
	Usage       ports.UsageStore
	Costs       ports.ExternalCostStore
	Pricing     ports.PricingSource

	Recorder ports.EventRecorder
	cache    ports.ReportCache
	sqliteDB *sqlite.DB
	pgDB     *postgres.DB
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	holder, err := newHolder(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing revlens")

	a := &App{
		Logger:  logger,
		Holder:  holder,
		Metrics: metrics.New(),
	}

	if err := a.initStores(cfg); err != nil {
		return nil, err
	}
	if err := a.initCache(cfg); err != nil {
		return nil, err
	}

	source, err := pricing.FromConfig(holder, logger)
	if err != nil {
		return nil, fmt.Errorf("init pricing: %w", err)
	}
	a.Pricing = source

	a.Reports = app.NewReportService(
		a.Subscribers, a.Usage, a.Costs, a.Pricing, a.cache,
		clock.Real{}, a.Metrics, logger,
		app.ReportServiceConfig{
			Aliasing: func() tier.Aliasing { return holder.Get().Tiers.Aliasing() },
			CacheTTL: func() time.Duration { return holder.Get().Cache.TTL },
		},
	)

	a.Recorder = app.NewBufferedRecorder(
		a.Usage, a.Metrics, logger,
		cfg.Ingest.BatchSize, cfg.Ingest.BufferSize, cfg.Ingest.FlushInterval,
	)

	a.initHTTPServer(cfg)

	holder.OnChange(func(*config.Config) {
		a.Metrics.ConfigReloads.Inc()
	})
	if opts.HotReload && opts.ConfigPath != "" {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		} else {
			logger.Info().Str("path", opts.ConfigPath).Msg("watching config file for changes")
		}
	}

	return a, nil
}

func newHolder(path string) (*config.Holder, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			// Logger is not built yet; holder events before setupLogger
			// go to a plain stderr logger.
			return config.NewHolder(path, zerolog.New(os.Stderr).With().Timestamp().Logger())
		}
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return config.NewStaticHolder(cfg, zerolog.New(os.Stderr).With().Timestamp().Logger()), nil
}

func (a *App) initStores(cfg *config.Config) error {
	switch cfg.Database.Driver {
	case "sqlite", "":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate sqlite: %w", err)
		}
		a.sqliteDB = db
		a.Subscribers = sqlite.NewSubscriberStore(db)
		a.Usage = sqlite.NewUsageStore(db)
		a.Costs = sqlite.NewExternalCostStore(db)
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("sqlite database initialized")

	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := postgres.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("migrate postgres: %w", err)
		}
		a.pgDB = db
		a.Subscribers = postgres.NewSubscriberStore(db)
		a.Usage = postgres.NewUsageStore(db)
		a.Costs = postgres.NewExternalCostStore(db)
		a.Logger.Info().Msg("postgres database initialized")

	case "memory":
		a.Subscribers = memory.NewSubscriberStore()
		a.Usage = memory.NewUsageStore()
		a.Costs = memory.NewExternalCostStore()
		a.Logger.Warn().Msg("using in-memory stores, data will not survive a restart")

	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	return nil
}

func (a *App) initCache(cfg *config.Config) error {
	if !cfg.Cache.Enabled {
		a.cache = rediscache.Noop{}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cache, err := rediscache.New(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.cache = cache
	a.Logger.Info().Str("addr", cfg.Cache.Addr).Msg("report cache enabled")
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) {
	holder := a.Holder

	adminHandler := admin.NewHandler(admin.Deps{
		Reports:     a.Reports,
		Subscribers: a.Subscribers,
		Pricing:     a.Pricing,
		Clock:       clock.Real{},
		IDGen:       idgen.UUID{},
		Logger:      a.Logger,
		Token:       func() string { return holder.Get().Admin.Token },
		Aliasing:    func() tier.Aliasing { return holder.Get().Tiers.Aliasing() },
	})

	meterHandler := meter.NewHandler(meter.Deps{
		Recorder: a.Recorder,
		Costs:    a.Costs,
		Clock:    clock.Real{},
		Metrics:  a.Metrics,
		Logger:   a.Logger,
		Token:    func() string { return holder.Get().Meter.Token },
		MaxBatch: func() int { return holder.Get().Meter.MaxBatch },
	})

	healthHandler := revhttp.NewHealthHandler(a.healthChecker())

	routerCfg := revhttp.RouterConfig{
		MetricsPath:   cfg.Metrics.Path,
		EnableOpenAPI: cfg.OpenAPI.Enabled,
		CORSOrigin:    cfg.Server.CORSOrigin,
		AdminHandler:  adminHandler.Router(),
		MeterHandler:  meterHandler.Router(),
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = a.Metrics
	}

	router := revhttp.NewRouter(healthHandler, a.Logger, routerCfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	a.Logger.Info().Str("addr", addr).Msg("http server configured")
}

func (a *App) healthChecker() revhttp.HealthChecker {
	switch {
	case a.sqliteDB != nil:
		db := a.sqliteDB
		return revhttp.HealthCheckerFunc(func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	case a.pgDB != nil:
		db := a.pgDB
		return revhttp.HealthCheckerFunc(func(ctx context.Context) error {
			return db.Ping(ctx)
		})
	}
	return nil
}

// Run starts the HTTP server and blocks until shutdown. SIGHUP reloads the
// configuration in place.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case sig := <-quit:
			if sig == syscall.SIGHUP {
				a.Logger.Info().Msg("SIGHUP received, reloading config")
				if err := a.Holder.Reload(); err != nil {
					a.Metrics.ConfigReloadErrors.Inc()
					a.Logger.Error().Err(err).Msg("config reload failed, keeping previous config")
				}
				continue
			}
			a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
			return a.Shutdown()
		}
	}
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Drain buffered usage events before the stores go away.
	if a.Recorder != nil {
		if err := a.Recorder.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("usage recorder close error")
		}
	}

	if c, ok := a.cache.(*rediscache.Cache); ok {
		if err := c.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("cache close error")
		}
	}

	if a.sqliteDB != nil {
		if err := a.sqliteDB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
	if a.pgDB != nil {
		if err := a.pgDB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Holder.Stop()

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
