package storage

import (
	"context"
	"fmt"

	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/db"
	"github.com/angelmondragon/crewsync/pkg/logger"
	"github.com/angelmondragon/crewsync/pkg/migrate"
	"github.com/angelmondragon/crewsync/pkg/redis"
	"go.uber.org/multierr"
)

// Backend bundles the configured store with the clients it was built on, so
// the agent can reuse the Redis connection for the flush lock.
type Backend struct {
	Store Store
	Redis *redis.Client
	DB    *db.Client
}

// Open builds the store selected by CREWSYNC_STORE_DRIVER. A Redis connection
// is opened whenever one is configured, even for other drivers.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Backend, error) {
	backend := &Backend{}

	if cfg.Redis.Enabled() {
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		backend.Redis = client
	}

	switch driver := cfg.Store.NormalizedDriver(); driver {
	case config.StoreDriverMemory:
		backend.Store = NewMemoryStore()
	case config.StoreDriverFile:
		store, err := NewFileStore(cfg.Store.FilePath)
		if err != nil {
			return nil, multierr.Append(err, backend.Close())
		}
		backend.Store = store
	case config.StoreDriverSQLite, config.StoreDriverPostgres:
		client, err := db.New(ctx, driver, cfg.DB, logg)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("database: %w", err), backend.Close())
		}
		backend.DB = client
		if err := migrate.MaybeAutoRun(ctx, cfg, logg, client); err != nil {
			return nil, multierr.Append(fmt.Errorf("migrations: %w", err), backend.Close())
		}
		backend.Store = NewSQLStore(client)
	case config.StoreDriverRedis:
		if backend.Redis == nil {
			return nil, fmt.Errorf("redis store selected without a redis endpoint")
		}
		backend.Store = NewRedisStore(backend.Redis)
	default:
		return nil, multierr.Append(fmt.Errorf("unsupported store driver %q", cfg.Store.Driver), backend.Close())
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "store_driver", cfg.Store.NormalizedDriver()), "document store ready")
	}
	return backend, nil
}

// Close releases every client the backend opened.
func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	var err error
	if b.DB != nil {
		err = multierr.Append(err, b.DB.Close())
	}
	if b.Redis != nil {
		err = multierr.Append(err, b.Redis.Close())
	}
	return err
}
