package cmd

import (
	"fmt"

	"catalog-manager/core/config"
	"catalog-manager/core/database"
	"catalog-manager/core/logger"
	"catalog-manager/feature/catalog/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd creates or updates the catalog schema.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the catalog database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logg.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}

		if err := store.AutoMigrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		logg.Info("Schema migration complete", zap.String("database", cfg.Database.Name))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
