package main

import (
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/chatrelay/internal/app"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the chat schema and seed the default chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, closeStore, err := app.OpenStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		logger.Info("migrated", zap.String("store", cfg.StoreBackend), zap.String("driver", cfg.DBDriver))
		return nil
	},
}
