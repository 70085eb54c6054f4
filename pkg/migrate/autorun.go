package migrate

import (
	"context"
	"fmt"

	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/db"
	"github.com/microgem/storefront-backend/pkg/logger"
)

// MaybeRunDev brings the site directory schema up to date when running in
// dev with auto-migrate enabled. Tenant databases are only migrated through
// cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.App.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	source, err := SourceFor(TargetDirectory)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "target", string(TargetDirectory))
	logg.Info(ctx, "migrate.dev_autorun")
	return Run(ctx, sqlDB, source, "up", logg)
}
