package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ingressolab/ingresso-backend/api/controllers"
	webhookcontrollers "github.com/ingressolab/ingresso-backend/api/controllers/webhooks"
	"github.com/ingressolab/ingresso-backend/api/middleware"
	"github.com/ingressolab/ingresso-backend/internal/buyers"
	"github.com/ingressolab/ingresso-backend/internal/events"
	"github.com/ingressolab/ingresso-backend/internal/orders"
	"github.com/ingressolab/ingresso-backend/internal/payments"
	"github.com/ingressolab/ingresso-backend/internal/promos"
	"github.com/ingressolab/ingresso-backend/internal/tickets"
	gatewaywebhook "github.com/ingressolab/ingresso-backend/internal/webhooks/gateway"
	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/metrics"
	"github.com/ingressolab/ingresso-backend/pkg/redis"
)

// RouterParams carries every dependency the HTTP surface needs.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        *redis.Client
	Registry     *prometheus.Registry
	Buyers       buyers.Service
	Events       events.Service
	Orders       orders.Service
	Payments     payments.Service
	Tickets      *tickets.Service
	Promos       promos.Repository
	Webhook      *gatewaywebhook.Service
	WebhookGuard *gatewaywebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	webhookMetrics := metrics.NewWebhookMetrics(nil)
	if p.Registry != nil {
		webhookMetrics = metrics.NewWebhookMetrics(p.Registry)
	}
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(cfg.Webhook, p.Webhook, p.WebhookGuard, webhookMetrics, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.Buyers, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.Buyers, logg))
	})

	r.Route("/api/v1/events", func(r chi.Router) {
		r.Get("/", controllers.PublicEventList(p.Events, logg))
		r.Get("/{eventId}", controllers.PublicEventDetail(p.Events, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/checkout", controllers.Checkout(p.Buyers, p.Orders, p.Payments, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(p.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.Orders, p.Payments, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(p.Orders, p.Payments, logg))
			r.Post("/{orderId}/payment/sync", controllers.OrderPaymentSync(p.Orders, p.Payments, logg))
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", controllers.TicketWallet(p.Tickets, logg))
			r.Post("/{ticketId}/transfer", controllers.TicketTransfer(p.Tickets, logg))
		})

		r.Route("/organizer", func(r chi.Router) {
			r.Use(middleware.RequireRole("organizer", logg))

			r.Post("/check-in", controllers.TicketCheckIn(p.Tickets, logg))

			r.Route("/events", func(r chi.Router) {
				r.Get("/", controllers.OrganizerEventList(p.Events, logg))
				r.Post("/", controllers.OrganizerEventCreate(p.Events, logg))
				r.Patch("/{eventId}", controllers.OrganizerEventUpdate(p.Events, logg))
				r.Post("/{eventId}/publish", controllers.OrganizerEventPublish(p.Events, logg))
				r.Post("/{eventId}/hide", controllers.OrganizerEventHide(p.Events, logg))
				r.Post("/{eventId}/ticket-types", controllers.OrganizerTicketTypeCreate(p.Events, logg))
				r.Route("/{eventId}/promos", func(r chi.Router) {
					r.Get("/", controllers.PromoList(p.Events, p.Promos, logg))
					r.Post("/", controllers.PromoCreate(p.Events, p.Promos, logg))
					r.Post("/{promoId}/deactivate", controllers.PromoDeactivate(p.Events, p.Promos, logg))
				})
			})
			r.Patch("/ticket-types/{ticketTypeId}", controllers.OrganizerTicketTypeResize(p.Events, logg))
			r.Patch("/ticket-types/{ticketTypeId}/visibility", controllers.OrganizerTicketTypeVisibility(p.Events, logg))
		})
	})

	return r
}
