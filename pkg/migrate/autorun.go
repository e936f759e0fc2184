package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/listingforge-backend/pkg/config"
	"github.com/angelmondragon/listingforge-backend/pkg/db"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations when running in dev with
// LISTINGFORGE_AUTO_MIGRATE set. SQLite databases are skipped; they get their
// schema from db.EnsureSQLiteSchema.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if client.DB().Dialector.Name() != db.DriverPostgres {
		logg.Warn(ctx, "auto-migrate skipped: goose migrations target postgres only")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "embedded"})
	logg.Info(ctx, "applying migrations")

	if err := RunEmbedded(ctx, sqlDB, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "migrations applied")
	return nil
}
