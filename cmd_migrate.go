package main

import (
	"medichat-server/internal/config"
	"medichat-server/internal/logging"
	"medichat-server/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.LogLevel, cfg.Environment)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		// InitDB migrates every model before returning.
		db, err := models.InitDB(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}

		logger.Info("schema migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}
