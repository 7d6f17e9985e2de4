package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/db"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

// MaybeAutoRun applies pending migrations on boot when the feature flag is
// enabled, or always for the sqlite store in dev where the file is local.
func MaybeAutoRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil {
		return nil
	}
	localSQLite := cfg.App.IsDev() && client.Driver() == config.StoreDriverSQLite
	if !cfg.FeatureFlags.AutoMigrate && !localSQLite {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": client.Driver()})
	if err := Run(ctx, sqlDB, client.Driver(), "up", nil); err != nil {
		return err
	}
	version, err := CurrentVersion(ctx, sqlDB, client.Driver())
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "schema migrated on boot")
	return nil
}
