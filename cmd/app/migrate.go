package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wichananm65/jai-storefront/internal/config"
	"github.com/wichananm65/jai-storefront/internal/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres document store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrate")
			}
			log := newLogger(cfg.LogLevel, os.Stdout)

			db, err := store.OpenPostgres(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Migrate(db); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
