package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/kiosko-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/kiosko-backend/api/controllers/webhooks"
	"github.com/angelmondragon/kiosko-backend/api/middleware"
	"github.com/angelmondragon/kiosko-backend/internal/buyers"
	checkoutsvc "github.com/angelmondragon/kiosko-backend/internal/checkout"
	"github.com/angelmondragon/kiosko-backend/internal/fulfillment"
	"github.com/angelmondragon/kiosko-backend/internal/operators"
	internalorders "github.com/angelmondragon/kiosko-backend/internal/orders"
	"github.com/angelmondragon/kiosko-backend/internal/warehouses"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
	"github.com/angelmondragon/kiosko-backend/pkg/redis"
)

// Deps carries everything the route table wires together. Optional pingers
// (pubsub, bigquery) may be nil; the readiness check skips them.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger       controllers.Pinger
	RedisClient    *redis.Client
	BigQueryPinger controllers.Pinger

	Operators   operators.Service
	Buyers      buyers.Service
	Checkout    checkoutsvc.Service
	Orders      internalorders.Service
	Fulfillment fulfillment.Service
	Warehouses  warehouses.Repository

	Geocoder       controllers.Geocoder
	DeliveryQuoter controllers.DeliveryQuoter

	PaymentWebhook webhookcontrollers.PaymentWebhookService
	PaymentSigner  webhookcontrollers.PaymentSigner
	PaymentGuard   webhookcontrollers.PaymentWebhookGuard
}

// NewRouter assembles the chi route table.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

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
		cfg.AuthRateLimit.LoginNameLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessChecks(deps)))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/payment", webhookcontrollers.PaymentWebhook(deps.PaymentWebhook, deps.PaymentSigner, deps.PaymentGuard, logg))
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, deps.RedisClient, logg)).
				Post("/login", controllers.AuthLogin(deps.Operators, logg))
		})

		// Buyer traffic arrives through the storefront gateway.
		r.Group(func(r chi.Router) {
			r.Use(middleware.ServiceAuth(cfg.Gateway, logg))
			r.Put("/buyers/{externalRef}", controllers.UpsertBuyer(deps.Buyers, logg))
			r.Post("/delivery/quotes", controllers.DeliveryQuote(cfg.Checkout, deps.Warehouses, deps.Geocoder, deps.DeliveryQuoter, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.ServiceOrOperatorAuth(cfg.Gateway, cfg.JWT, logg))
				r.Post("/", controllers.CreateOrder(deps.Checkout, logg))
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderID}", controllers.GetOrder(deps.Orders, logg))
				r.Get("/{orderID}/delivery", controllers.OrderDeliveryDetails(deps.Fulfillment, logg))
				r.Post("/{orderID}/cancel", controllers.CancelOrder(deps.Fulfillment, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, logg))
				r.Post("/{orderID}/status", controllers.AdvanceOrderStatus(deps.Orders, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.RequireRole(string(enums.OperatorRoleAdmin), logg),
			)
			r.Post("/operators", controllers.CreateOperator(deps.Operators, logg))
		})
	})

	return r
}

func readinessChecks(deps Deps) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{
		"database": deps.DBPinger,
	}
	if deps.RedisClient != nil {
		checks["redis"] = deps.RedisClient
	}
	if deps.BigQueryPinger != nil {
		checks["bigquery"] = deps.BigQueryPinger
	}
	return checks
}
