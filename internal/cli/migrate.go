package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/spacebook/internal/config"
	"github.com/iliyamo/spacebook/internal/database"
	"github.com/iliyamo/spacebook/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing MySQL tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StoreMySQL {
				return fmt.Errorf("migrate requires STORE_DRIVER=%s", config.StoreMySQL)
			}
			log, err := logger.New(cfg.IsProd(), cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info("schema up to date", zap.Int("statements", len(database.Statements())))
			return nil
		},
	}
}
