package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/edgard/chattop/internal/config"
	"github.com/edgard/chattop/internal/database"
	"github.com/edgard/chattop/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				slog.Error("Failed to load configuration", "path", configPath, "error", err)
				return err
			}
			log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)

			db, err := database.NewDB(cfg.Database)
			if err != nil {
				log.Error("Failed to migrate database", "error", err)
				return err
			}
			database.CloseDB(db)
			return nil
		},
	}
}
