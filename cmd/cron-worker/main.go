package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ingressolab/ingresso-backend/internal/cron"
	"github.com/ingressolab/ingresso-backend/internal/events"
	"github.com/ingressolab/ingresso-backend/internal/orders"
	"github.com/ingressolab/ingresso-backend/internal/payments"
	"github.com/ingressolab/ingresso-backend/internal/promos"
	"github.com/ingressolab/ingresso-backend/internal/tickets"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db"
	"github.com/ingressolab/ingresso-backend/pkg/gateway"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/metrics"
	"github.com/ingressolab/ingresso-backend/pkg/outbox"
	"github.com/ingressolab/ingresso-backend/pkg/redis"
)

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", name), "cron worker bootstrap failed", err)
	os.Exit(1)
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	gatewayClient, err := gateway.NewClient(cfg.Gateway, logg)
	requireResource(ctx, logg, "gateway", err)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())
	ticketsService := tickets.NewService(tickets.NewRepository(dbClient.DB()), logg)

	ordersService, err := orders.NewService(
		dbClient,
		ordersRepo,
		events.NewRepository(dbClient.DB()),
		promos.NewRepository(dbClient.DB()),
		ticketsService,
		outboxService,
		cfg.Checkout,
		logg,
	)
	requireResource(ctx, logg, "orders service", err)

	paymentsService, err := payments.NewService(
		dbClient,
		payments.NewRepository(dbClient.DB()),
		gatewayClient,
		ordersService,
		outboxService,
		logg,
	)
	requireResource(ctx, logg, "payments service", err)

	expiryJob, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:   logg,
		Reader:   ordersRepo,
		Orders:   ordersService,
		Payments: paymentsService,
	})
	requireResource(ctx, logg, "order expiry job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.LockTTL)
	requireResource(ctx, logg, "cron lock", err)

	registry := prometheus.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(registry),
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	logg.Info(logg.WithField(ctx, "interval", cfg.Cron.Interval.String()), "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "cron worker shut down")
}
