package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ingressolab/ingresso-backend/api/routes"
	"github.com/ingressolab/ingresso-backend/internal/buyers"
	"github.com/ingressolab/ingresso-backend/internal/events"
	"github.com/ingressolab/ingresso-backend/internal/orders"
	"github.com/ingressolab/ingresso-backend/internal/payments"
	"github.com/ingressolab/ingresso-backend/internal/promos"
	"github.com/ingressolab/ingresso-backend/internal/tickets"
	gatewaywebhook "github.com/ingressolab/ingresso-backend/internal/webhooks/gateway"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db"
	"github.com/ingressolab/ingresso-backend/pkg/gateway"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/migrate"
	"github.com/ingressolab/ingresso-backend/pkg/outbox"
	"github.com/ingressolab/ingresso-backend/pkg/redis"
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

	gatewayClient, err := gateway.NewClient(cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	buyersService, err := buyers.NewService(buyers.NewRepository(dbClient.DB()), cfg.JWT, cfg.Password, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create buyers service", err)
		os.Exit(1)
	}

	eventsRepo := events.NewRepository(dbClient.DB())
	eventsService, err := events.NewService(eventsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create events service", err)
		os.Exit(1)
	}

	promosRepo := promos.NewRepository(dbClient.DB())
	ticketsService := tickets.NewService(tickets.NewRepository(dbClient.DB()), logg)

	ordersService, err := orders.NewService(
		dbClient,
		orders.NewRepository(dbClient.DB()),
		eventsRepo,
		promosRepo,
		ticketsService,
		outboxService,
		cfg.Checkout,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(
		dbClient,
		payments.NewRepository(dbClient.DB()),
		gatewayClient,
		ordersService,
		outboxService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	webhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Payments: paymentsService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "gateway-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()

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
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			Registry:     registry,
			Buyers:       buyersService,
			Events:       eventsService,
			Orders:       ordersService,
			Payments:     paymentsService,
			Tickets:      ticketsService,
			Promos:       promosRepo,
			Webhook:      webhookService,
			WebhookGuard: webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
