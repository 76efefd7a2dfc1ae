package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/kiosko-backend/internal/buyers"
	"github.com/angelmondragon/kiosko-backend/internal/cron"
	"github.com/angelmondragon/kiosko-backend/internal/fulfillment"
	"github.com/angelmondragon/kiosko-backend/internal/ledger"
	"github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/internal/warehouses"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/db"
	"github.com/angelmondragon/kiosko-backend/pkg/delivery"
	"github.com/angelmondragon/kiosko-backend/pkg/geocode"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/metrics"
	"github.com/angelmondragon/kiosko-backend/pkg/migrate"
	"github.com/angelmondragon/kiosko-backend/pkg/outbox"
	"github.com/angelmondragon/kiosko-backend/pkg/redis"
)

const lockKeyFormat = "ko:cron-worker:lock:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	locks := func(jobName string) (cron.Lock, error) {
		return cron.NewRedisLock(redisClient, lockKey(cfg.App.Env, jobName), cfg.Cron.LockTTL)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    locks,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	opsServer := newOpsServer(cfg.App.Port)
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server stopped unexpectedly", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error shutting down ops server", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	gdb := dbClient.DB()

	ordersRepo := orders.NewRepository(gdb)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gdb))
	if err != nil {
		return nil, err
	}

	outboxRepo := outbox.NewRepository(gdb)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, ledgerSvc)
	if err != nil {
		return nil, err
	}

	buyersSvc, err := buyers.NewService(buyers.Deps{
		Tx:     dbClient,
		Repo:   buyers.NewRepository(gdb),
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	deliveryClient, err := delivery.NewClient(cfg.Delivery, logg)
	if err != nil {
		return nil, err
	}

	geocodeClient, err := geocode.NewClient(cfg.Geocode)
	if err != nil {
		return nil, err
	}

	fulfillmentSvc, err := fulfillment.NewService(fulfillment.Deps{
		Config:     cfg.Checkout,
		OrderRepo:  ordersRepo,
		Repo:       fulfillment.NewRepository(gdb),
		Buyers:     buyersSvc,
		Warehouses: warehouses.NewRepository(gdb),
		Geocoder:   geocodeClient,
		Gateway:    deliveryClient,
		Orders:     ordersSvc,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	pendingExpiry, err := cron.NewPendingExpiryJob(cron.PendingExpiryJobParams{
		Logger:   logg,
		Reader:   ordersRepo,
		Orders:   ordersSvc,
		Timeout:  cfg.Checkout.PendingPaymentTTL,
		Interval: cfg.Cron.PendingExpiryInterval,
	})
	if err != nil {
		return nil, err
	}

	deliverySync, err := cron.NewDeliverySyncJob(cron.DeliverySyncJobParams{
		Logger:      logg,
		Reader:      ordersRepo,
		Fulfillment: fulfillmentSvc,
		Interval:    cfg.Cron.DeliverySyncInterval,
	})
	if err != nil {
		return nil, err
	}

	stuckProcessing, err := cron.NewStuckProcessingJob(cron.StuckProcessingJobParams{
		Logger:   logg,
		Reader:   ordersRepo,
		Orders:   ordersSvc,
		Grace:    cfg.Checkout.StuckProcessingGrace,
		Interval: cfg.Cron.StuckCleanupInterval,
	})
	if err != nil {
		return nil, err
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionAge,
		Interval:   cfg.Cron.OutboxRetentionInterval,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(pendingExpiry, deliverySync, stuckProcessing, outboxRetention), nil
}

func newOpsServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func lockKey(env, job string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, job)
}
