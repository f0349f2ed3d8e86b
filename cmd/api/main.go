package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kioskly/kiosk-backend/api/routes"
	"github.com/kioskly/kiosk-backend/internal/gateway"
	"github.com/kioskly/kiosk-backend/internal/inventory"
	"github.com/kioskly/kiosk-backend/internal/kitchen"
	"github.com/kioskly/kiosk-backend/internal/orders"
	"github.com/kioskly/kiosk-backend/internal/payments"
	"github.com/kioskly/kiosk-backend/internal/products"
	"github.com/kioskly/kiosk-backend/internal/stores"
	"github.com/kioskly/kiosk-backend/pkg/config"
	"github.com/kioskly/kiosk-backend/pkg/db"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/mercadopago"
	"github.com/kioskly/kiosk-backend/pkg/metrics"
	"github.com/kioskly/kiosk-backend/pkg/migrate"
	"github.com/kioskly/kiosk-backend/pkg/redis"
)

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
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	mpClient, err := mercadopago.NewClient(cfg.MercadoPago, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mercadopago client", err)
		os.Exit(1)
	}

	gatewayAdapter, err := gateway.NewAdapter(mpClient, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway adapter", err)
		os.Exit(1)
	}

	storesRepo := stores.NewRepository(dbClient.DB())
	storeService, err := stores.NewService(storesRepo, cfg.MercadoPago, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create store service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	productsRepo := products.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	orderService, err := orders.NewService(orders.Params{
		Client:    dbClient,
		Repo:      ordersRepo,
		Products:  productsRepo,
		Inventory: inventoryService,
		Gateway:   gatewayAdapter,
		Stores:    storeService,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	paymentCache, err := payments.NewRedisCache(redisClient, cfg.Payments.CacheTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment cache", err)
		os.Exit(1)
	}

	paymentEngine, err := payments.NewEngine(payments.Params{
		Client:    dbClient,
		Orders:    ordersRepo,
		Inventory: inventoryService,
		Gateway:   gatewayAdapter,
		Stores:    storeService,
		Cache:     paymentCache,
		Guard:     payments.NewRedisGuard(redisClient, cfg.Payments.WebhookDedupTTL),
		Metrics:   paymentMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment engine", err)
		os.Exit(1)
	}

	kitchenService, err := kitchen.NewService(ordersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create kitchen service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DBPinger:      dbClient,
			RedisPinger:   redisClient,
			StoreService:  storeService,
			ProductsRepo:  productsRepo,
			OrderService:  orderService,
			PaymentEngine: paymentEngine,
			KitchenSvc:    kitchenService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
