package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/wichananm65/jai-storefront/internal/auth"
	"github.com/wichananm65/jai-storefront/internal/cart"
	"github.com/wichananm65/jai-storefront/internal/config"
	"github.com/wichananm65/jai-storefront/internal/events"
	"github.com/wichananm65/jai-storefront/internal/live"
	"github.com/wichananm65/jai-storefront/internal/order"
	"github.com/wichananm65/jai-storefront/internal/product"
	"github.com/wichananm65/jai-storefront/internal/store"
)

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l}))
}

// openStore connects the configured document store. The returned close
// function releases the connection.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresStore(db, cfg.DatabaseURL, logger), db.Close, nil
	case config.DriverMongo:
		db, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.Client().Disconnect(ctx)
		}
		return store.NewMongoStore(db, logger), closeFn, nil
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openCartRepository keeps carts in Redis when REDIS_ADDR is set and in
// process memory otherwise.
func openCartRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (cart.Repository, func() error, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set; carts are kept in memory")
		return cart.NewInMemoryRepository(), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return cart.NewRedisRepository(client, cfg.CartTTL, logger), client.Close, nil
}

func newPublisher(cfg config.Config, logger *slog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("KAFKA_BROKERS not set; order events are not published")
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
}

// server holds the HTTP app and the live collections it reads from. The
// collections must be run for the handlers to see any data.
type server struct {
	app      *fiber.App
	store    store.Store
	products *live.Collection[product.Product]
	orders   *live.Collection[order.Order]
}

func newServer(cfg config.Config, st store.Store, carts cart.Repository, publisher events.Publisher, log *slog.Logger) *server {
	breaker := store.NewBreaker(st, store.DefaultBreakerSettings())

	products := live.NewCollection(store.Query{Collection: product.Collection}, product.FromDocument, log)
	orders := live.NewCollection(store.Query{Collection: order.Collection, OrderBy: "date", Descending: true}, order.FromDocument, log)

	productService := product.NewService(product.NewStoreRepository(breaker), products, cfg.PlaceholderImage)
	cartService := cart.NewService(carts, productService, log)
	orderService := order.NewService(order.NewStoreRepository(breaker), cartService, orders, publisher, log)
	authService := auth.NewService(cfg.AdminPasswordHash, cfg.JWTSecret, cfg.TokenTTL)

	productHandler := product.NewHandler(productService, products)
	cartHandler := cart.NewHandler(cartService)
	orderHandler := order.NewHandler(orderService, orders)
	authHandler := auth.NewHandler(authService)

	app := fiber.New(fiber.Config{AppName: "jai-storefront"})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"breaker": breaker.State(),
			"catalogue": fiber.Map{
				"products": len(products.Snapshot()),
				"readAt":   products.ReadAt(),
			},
		})
	})

	authHandler.RegisterPublicRoutes(app)
	productHandler.RegisterPublicRoutes(app)
	cartHandler.RegisterPublicRoutes(app)
	orderHandler.RegisterPublicRoutes(app)

	admin := app.Group("/api/v1/admin", auth.Middleware(cfg.JWTSecret), auth.RequireAdmin)
	productHandler.RegisterProtectedRoutes(admin)
	orderHandler.RegisterProtectedRoutes(admin)

	return &server{app: app, store: st, products: products, orders: orders}
}
