package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wichananm65/jai-storefront/internal/config"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and keep the catalogue and orders in sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel, os.Stdout)

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	carts, closeCarts, err := openCartRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCarts()

	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	srv := newServer(cfg, st, carts, publisher, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.products.Run(gctx, st) })
	g.Go(func() error { return srv.orders.Run(gctx, st) })
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr, "store", cfg.StoreDriver)
		return srv.app.Listen(cfg.Addr)
	})
	// The collections stop with gctx, which also ends open event streams.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return srv.app.ShutdownWithTimeout(shutdownTimeout)
	})
	return g.Wait()
}
