package migrate

import (
	"context"
	"fmt"

	"github.com/gasflow/ops-console/pkg/config"
	"github.com/gasflow/ops-console/pkg/db"
	"github.com/gasflow/ops-console/pkg/logger"
)

// MaybeRunDev applies the embedded migrations when auto-migrate is enabled and the
// console runs in dev mode or on a local sqlite file.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if !cfg.App.IsDev() && !cfg.DB.UseSQLite {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := Run(ctx, sqlDB, client.Dialect(), EmbeddedDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
