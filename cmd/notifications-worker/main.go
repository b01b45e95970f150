package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ingressolab/ingresso-backend/internal/notifications"
	"github.com/ingressolab/ingresso-backend/internal/orders"
	"github.com/ingressolab/ingresso-backend/internal/tickets"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/pubsub"
)

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", name), "notifications worker bootstrap failed", err)
	os.Exit(1)
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "notifications-worker"})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = "notifications-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notifications-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	ordersRepo := orders.NewRepository(dbClient.DB())
	service, err := notifications.NewService(notifications.NewLogSender(logg), ordersRepo, logg)
	requireResource(ctx, logg, "notifications service", err)

	consumer, err := notifications.NewOrderConfirmedConsumer(
		service,
		ordersRepo,
		tickets.NewRepository(dbClient.DB()),
		pubsubClient.OrdersSubscription(),
		logg,
	)
	requireResource(ctx, logg, "order confirmed consumer", err)

	logg.Info(logg.WithField(ctx, "subscription", cfg.PubSub.OrdersSubscription), "starting notifications worker")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notifications worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "notifications worker shut down")
}
