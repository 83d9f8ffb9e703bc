package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/db"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in dev when
// COACHLEDGER_AUTO_MIGRATE is set. SQLite is skipped.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate || cfg.DB.IsSQLite() {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	sources, err := Sources("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, sources, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "auto-applying ledger migrations")
	return runner.Exec(ctx, CmdUp, "")
}
