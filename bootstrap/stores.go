package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/cmskit/adapters/postgres"
	"github.com/artpar/cmskit/adapters/sqlite"
	"github.com/artpar/cmskit/config"
	"github.com/artpar/cmskit/ports"
)

// Stores holds the row store ports of the configured database driver.
type Stores struct {
	Driver      string
	Collections ports.CollectionStore
	Configs     ports.ConfigStore
	Items       ports.ItemStore
	Memberships ports.MembershipStore

	// Analytics is nil for drivers without an analytics table.
	Analytics ports.AnalyticsSink

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks the database connection.
func (s *Stores) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close closes the database connection.
func (s *Stores) Close() error {
	return s.close()
}

// OpenStores connects to the configured database and brings its schema up
// to date.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Stores, error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", cfg.Driver).Msg("database initialized")
		return &Stores{
			Driver:      cfg.Driver,
			Collections: store.Collections(),
			Configs:     store.Configs(),
			Items:       store.Items(),
			Memberships: store.Memberships(),
			ping:        store.Ping,
			close:       store.Close,
		}, nil

	case "sqlite", "":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Str("driver", "sqlite").Str("dsn", cfg.DSN).Msg("database initialized")
		return &Stores{
			Driver:      "sqlite",
			Collections: sqlite.NewCollectionStore(db),
			Configs:     sqlite.NewConfigStore(db),
			Items:       sqlite.NewItemStore(db),
			Memberships: sqlite.NewMembershipStore(db),
			Analytics:   sqlite.NewAnalyticsStore(db),
			ping:        db.PingContext,
			close:       db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
