package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/wichananm65/jai-storefront/internal/config"
	"github.com/wichananm65/jai-storefront/internal/product"
	"github.com/wichananm65/jai-storefront/internal/store"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace the catalogue with the sample products",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := checkSeedConfig(cfg); err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, os.Stdout)

			st, closeStore, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			created, err := seedCatalogue(cmd.Context(), st, cfg.PlaceholderImage)
			if err != nil {
				return err
			}
			log.Info("catalogue seeded", "products", len(created))
			return nil
		},
	}
}

// checkSeedConfig refuses the memory driver, whose data would vanish when
// the command exits.
func checkSeedConfig(cfg config.Config) error {
	if cfg.StoreDriver == config.DriverMemory {
		return errors.New("seed needs a persistent store: set STORE_DRIVER to postgres or mongo")
	}
	return cfg.ValidateStore()
}

func seedCatalogue(ctx context.Context, st store.Store, placeholderImage string) ([]product.Product, error) {
	svc := product.NewService(product.NewStoreRepository(st), nil, placeholderImage)
	return svc.Reset(ctx, product.SampleCatalogue())
}
