package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/revlens/revlens/adapters/postgres"
	"github.com/revlens/revlens/adapters/sqlite"
	"github.com/revlens/revlens/config"
	"github.com/revlens/revlens/ports"
)

// cliStores bundles the storage ports a one-shot command needs, with a
// cleanup function for the underlying connection.
type cliStores struct {
	Subscribers ports.SubscriberStore
	Usage       ports.UsageStore
	Costs       ports.ExternalCostStore
	Close       func()
}

func loadCLIConfig() (*config.Config, error) {
	return config.LoadWithFallback(cfgFile)
}

// openStores connects to the configured database without starting the
// server stack.
func openStores(cfg *config.Config) (*cliStores, error) {
	switch cfg.Database.Driver {
	case "sqlite", "":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &cliStores{
			Subscribers: sqlite.NewSubscriberStore(db),
			Usage:       sqlite.NewUsageStore(db),
			Costs:       sqlite.NewExternalCostStore(db),
			Close:       func() { db.Close() },
		}, nil

	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := postgres.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &cliStores{
			Subscribers: postgres.NewSubscriberStore(db),
			Usage:       postgres.NewUsageStore(db),
			Costs:       postgres.NewExternalCostStore(db),
			Close:       func() { db.Close() },
		}, nil
	}

	return nil, fmt.Errorf("database driver %q has no persistent store for CLI commands", cfg.Database.Driver)
}

func quietLogger() zerolog.Logger {
	return zerolog.Nop()
}
