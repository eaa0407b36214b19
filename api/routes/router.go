package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvillareal/automarket-backend/api/controllers"
	"github.com/dvillareal/automarket-backend/api/middleware"
	"github.com/dvillareal/automarket-backend/internal/ledger"
	"github.com/dvillareal/automarket-backend/internal/notifications"
	"github.com/dvillareal/automarket-backend/internal/orders"
	"github.com/dvillareal/automarket-backend/internal/partners"
	"github.com/dvillareal/automarket-backend/internal/tracking"
	"github.com/dvillareal/automarket-backend/pkg/config"
	"github.com/dvillareal/automarket-backend/pkg/db"
	"github.com/dvillareal/automarket-backend/pkg/enums"
	"github.com/dvillareal/automarket-backend/pkg/logger"
	"github.com/dvillareal/automarket-backend/pkg/pubsub"
	"github.com/dvillareal/automarket-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubClient *pubsub.Client,
	ledgerSvc ledger.Service,
	ordersSvc orders.Service,
	trackingSvc tracking.Service,
	partnersSvc partners.Service,
	notificationsSvc notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	walletPolicy := middleware.NewRateLimitPolicy(
		"wallet",
		cfg.RateLimit.WalletWindow,
		cfg.RateLimit.WalletIPLimit,
		cfg.RateLimit.WalletLimit,
	)

	// A nil *redis.Client stored in an interface is not a nil interface, so
	// the store-less shortcuts in the middleware would never fire.
	var idemStore redis.IdempotencyStore
	var rlStore middleware.RateLimiterStore
	if redisClient != nil {
		idemStore = redisClient
		rlStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.ReadinessDeps(dbP, redisClient, pubsubClient)))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/wallet", func(r chi.Router) {
			r.Use(middleware.RateLimit(walletPolicy, rlStore, logg))
			r.Get("/balance", controllers.WalletBalance(ledgerSvc, logg))
			r.Get("/transactions", controllers.WalletTransactions(ledgerSvc, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersSvc, logg))
			r.Get("/{orderID}", controllers.GetOrder(ordersSvc, logg))
			r.Get("/number/{orderNumber}", controllers.GetOrderByNumber(ordersSvc, logg))
			r.Get("/{orderID}/tracking", controllers.GetOrderTracking(trackingSvc, logg))

			r.With(middleware.RateLimit(walletPolicy, rlStore, logg)).
				Post("/{orderID}/pay", controllers.PayOrder(ordersSvc, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(ordersSvc, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
				r.Post("/{orderID}/ship", controllers.ShipOrder(ordersSvc, logg))
				r.Post("/{orderID}/complete", controllers.CompleteOrder(ordersSvc, logg))
				r.Post("/{orderID}/payout", controllers.PayoutOrder(ledgerSvc, logg))
			})
		})

		r.Route("/tracking", func(r chi.Router) {
			r.Get("/{trackingNumber}", controllers.GetTrackingByNumber(trackingSvc, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
				r.Post("/", controllers.CreateTracking(trackingSvc, logg))
				r.Patch("/{trackingID}/status", controllers.UpdateTrackingStatus(trackingSvc, logg))
				r.Delete("/{trackingID}", controllers.DeleteTracking(trackingSvc, logg))
			})
		})

		r.Route("/partners/me", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRolePartner), logg))
			r.Get("/stats", controllers.PartnerStats(partnersSvc, logg))
			r.Get("/orders", controllers.PartnerOrders(partnersSvc, logg))
			r.Get("/orders/{orderID}", controllers.PartnerOrder(partnersSvc, logg))
			r.Get("/customers/{customerID}/orders", controllers.PartnerCustomerHistory(partnersSvc, logg))
			r.Get("/profile", controllers.PartnerProfile(partnersSvc, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsSvc, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationsSvc, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsSvc, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
			r.Get("/ping", controllers.AdminPing())
			r.Post("/partners", controllers.CreatePartnerProfile(partnersSvc, logg))
		})
	})

	return r
}
