package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/kiosko-backend/api/routes"
	"github.com/angelmondragon/kiosko-backend/internal/buyers"
	"github.com/angelmondragon/kiosko-backend/internal/checkout"
	"github.com/angelmondragon/kiosko-backend/internal/fulfillment"
	"github.com/angelmondragon/kiosko-backend/internal/ledger"
	"github.com/angelmondragon/kiosko-backend/internal/operators"
	"github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/internal/warehouses"
	paymentwebhook "github.com/angelmondragon/kiosko-backend/internal/webhooks/payment"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/db"
	"github.com/angelmondragon/kiosko-backend/pkg/delivery"
	"github.com/angelmondragon/kiosko-backend/pkg/geocode"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/migrate"
	"github.com/angelmondragon/kiosko-backend/pkg/outbox"
	"github.com/angelmondragon/kiosko-backend/pkg/payments"
	"github.com/angelmondragon/kiosko-backend/pkg/redis"
)

const (
	shutdownGrace      = 15 * time.Second
	webhookDedupeTTL   = 48 * time.Hour
	webhookDedupeScope = "square-webhook"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := buildDeps(context.Background(), cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	if err := deps.Operators.EnsureBootstrapAdmin(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to seed bootstrap admin", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}

func buildDeps(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Deps, error) {
	gdb := dbClient.DB()

	ordersRepo := orders.NewRepository(gdb)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gdb))
	if err != nil {
		return routes.Deps{}, err
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, ledgerSvc)
	if err != nil {
		return routes.Deps{}, err
	}

	buyersSvc, err := buyers.NewService(buyers.Deps{
		Tx:     dbClient,
		Repo:   buyers.NewRepository(gdb),
		Logger: logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	operatorsSvc, err := operators.NewService(operators.Deps{
		JWT:       cfg.JWT,
		Password:  cfg.Password,
		Bootstrap: cfg.Bootstrap,
		Repo:      operators.NewRepository(gdb),
		Logger:    logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	warehousesRepo := warehouses.NewRepository(gdb)

	paymentsClient, err := payments.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	deliveryClient, err := delivery.NewClient(cfg.Delivery, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	geocodeClient, err := geocode.NewClient(cfg.Geocode)
	if err != nil {
		return routes.Deps{}, err
	}

	fulfillmentSvc, err := fulfillment.NewService(fulfillment.Deps{
		Config:     cfg.Checkout,
		OrderRepo:  ordersRepo,
		Repo:       fulfillment.NewRepository(gdb),
		Buyers:     buyersSvc,
		Warehouses: warehousesRepo,
		Geocoder:   geocodeClient,
		Gateway:    deliveryClient,
		Orders:     ordersSvc,
		Logger:     logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Config:    cfg.Checkout,
		OrderRepo: ordersRepo,
		PayRepo:   checkout.NewRepository(gdb),
		Buyers:    buyersSvc,
		Ledger:    ledgerSvc,
		Orders:    ordersSvc,
		Gateway:   paymentsClient,
		Outbox:    outboxSvc,
		Tx:        dbClient,
		Claims:    fulfillmentSvc,
		Logger:    logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	webhookSvc, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Checkout: checkoutSvc,
		Logger:   logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	webhookGuard, err := paymentwebhook.NewIdempotencyGuard(redisClient, webhookDedupeTTL, webhookDedupeScope)
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Config:         cfg,
		Logger:         logg,
		DBPinger:       dbClient,
		RedisClient:    redisClient,
		Operators:      operatorsSvc,
		Buyers:         buyersSvc,
		Checkout:       checkoutSvc,
		Orders:         ordersSvc,
		Fulfillment:    fulfillmentSvc,
		Warehouses:     warehousesRepo,
		Geocoder:       geocodeClient,
		DeliveryQuoter: deliveryClient,
		PaymentWebhook: webhookSvc,
		PaymentSigner:  paymentsClient,
		PaymentGuard:   webhookGuard,
	}, nil
}
