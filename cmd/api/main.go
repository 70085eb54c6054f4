package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/microgem/storefront-backend/api/controllers"
	"github.com/microgem/storefront-backend/api/routes"
	"github.com/microgem/storefront-backend/internal/cart"
	"github.com/microgem/storefront-backend/internal/orders"
	product "github.com/microgem/storefront-backend/internal/products"
	"github.com/microgem/storefront-backend/internal/tenants"
	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/db"
	"github.com/microgem/storefront-backend/pkg/instance"
	"github.com/microgem/storefront-backend/pkg/logger"
	"github.com/microgem/storefront-backend/pkg/metrics"
	"github.com/microgem/storefront-backend/pkg/migrate"
	"github.com/microgem/storefront-backend/pkg/pubsub"
	"github.com/microgem/storefront-backend/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer closeResource(logg, "database", dbClient.Close)

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer closeResource(logg, "redis", redisClient.Close)

	connector, err := tenants.NewPoolConnector(tenants.PostgresOpener(cfg.DB, cfg.Tenant))
	requireResource(ctx, logg, "tenant connector", err)
	defer closeResource(logg, "tenant pools", connector.Close)

	resolver, err := tenants.NewResolver(tenants.NewRepository(dbClient.DB()), connector)
	requireResource(ctx, logg, "tenant resolver", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	var publisher pubsub.EventPublisher = pubsub.NoopPublisher{}
	ready := map[string]controllers.Pinger{
		"directory": dbClient,
		"redis":     redisClient,
	}
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer closeResource(logg, "pubsub", psClient.Close)

		topicPublisher, err := pubsub.NewTopicEventPublisher(psClient.OrdersPublisher())
		requireResource(ctx, logg, "order event publisher", err)
		publisher = topicPublisher
		ready["pubsub"] = psClient
	}

	catalog := product.NewRepository()
	store, err := cart.NewRedisStore(redisClient, cfg.Cart.TTL)
	requireResource(ctx, logg, "cart store", err)

	cartService, err := cart.NewService(resolver, catalog, store, cfg.Cart, logg, storefrontMetrics)
	requireResource(ctx, logg, "cart service", err)

	orderService, err := orders.NewService(orders.Deps{
		Resolver:  resolver,
		Carts:     cartService,
		Catalog:   catalog,
		Repo:      orders.NewRepository(),
		Publisher: publisher,
		Config:    cfg.Order,
		Logger:    logg,
		Metrics:   storefrontMetrics,
	})
	requireResource(ctx, logg, "order service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:  cfg,
			Logger:  logg,
			Carts:   cartService,
			Orders:  orderService,
			Redis:   redisClient,
			Ready:   ready,
			Metrics: registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}

func closeResource(logg *logger.Logger, resource string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+resource, err)
	}
}
