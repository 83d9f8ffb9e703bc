package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/coachledger-backend/api/controllers"
	"github.com/angelmondragon/coachledger-backend/api/middleware"
	"github.com/angelmondragon/coachledger-backend/internal/balance"
	"github.com/angelmondragon/coachledger-backend/internal/coaches"
	"github.com/angelmondragon/coachledger-backend/internal/commissions"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/payouts"
	"github.com/angelmondragon/coachledger-backend/internal/sales"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/coachledger-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(policy, subject string) string
}

// Services bundles the domain services the API exposes.
type Services struct {
	Settings    settings.Service
	Coaches     coaches.Service
	Ledger      ledger.Service
	Balance     balance.Service
	Commissions commissions.Engine
	Payouts     payouts.Service
	Sales       sales.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry *prometheus.Registry,
	store RedisStore,
	health map[string]controllers.Pinger,
	svc Services,
) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(registry)
	}
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
	)

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.IPLimit, cfg.RateLimit.CallerLimit)
	payoutPolicy := middleware.NewRateLimitPolicy("payouts", cfg.RateLimit.PayoutWindow, 0, cfg.RateLimit.PayoutLimit)

	var idempotencyStore pkgredis.IdempotencyStore
	if store != nil {
		idempotencyStore = store
	}
	limiter := func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
		if store == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(policy, store, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, health))
	})
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.Ping("public"))
	})

	r.Route("/api/v1/coach", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireCoach(logg))
		r.Use(limiter(apiPolicy))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		self := controllers.FromToken()
		r.Get("/ping", controllers.Ping("coach"))
		r.Get("/profile", controllers.CoachProfile(svc.Coaches, self, logg))
		r.Get("/balance", controllers.Balance(svc.Balance, self, logg))
		r.Get("/transactions", controllers.TransactionList(svc.Ledger, self, logg))
		r.Get("/transactions/{transactionId}", controllers.TransactionDetail(svc.Ledger, self, logg))
		r.Get("/commissions/summary", controllers.CommissionSummary(svc.Commissions, self, logg))
		r.Put("/payout-destination", controllers.UpdateDestination(svc.Coaches, logg))
		r.Post("/payout-identity", controllers.ProvisionIdentity(svc.Payouts, logg))
		r.With(limiter(payoutPolicy)).Post("/payouts", controllers.RequestPayout(svc.Payouts, logg))
		r.Post("/payouts/{payoutId}/cancel", controllers.CancelPayout(svc.Payouts, logg))
		r.Post("/payouts/{payoutId}/reconcile", controllers.ReconcilePayout(svc.Payouts, svc.Ledger, self, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
		r.Use(limiter(apiPolicy))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/ping", controllers.Ping("admin"))
		r.Get("/settings", controllers.AdminSettingsGet(svc.Settings, logg))
		r.Put("/settings", controllers.AdminSettingsUpdate(svc.Settings, logg))
		r.Post("/sales", controllers.AdminCompleteSale(svc.Sales, logg))
		r.Get("/sales/{saleId}", controllers.AdminSaleCost(svc.Ledger, logg))
		r.Post("/adjustments", controllers.AdminAdjust(svc.Ledger, logg))
		r.Post("/transactions/{transactionId}/refund", controllers.AdminRefund(svc.Ledger, logg))
		r.Post("/payouts/{payoutId}/reconcile", controllers.ReconcilePayout(svc.Payouts, nil, nil, logg))

		r.Route("/coaches/{coachId}", func(r chi.Router) {
			coach := controllers.FromPath("coachId")
			r.Get("/", controllers.CoachProfile(svc.Coaches, coach, logg))
			r.Put("/", controllers.AdminSyncCoach(svc.Coaches, logg))
			r.Get("/balance", controllers.Balance(svc.Balance, coach, logg))
			r.Get("/transactions", controllers.TransactionList(svc.Ledger, coach, logg))
			r.Get("/transactions/{transactionId}", controllers.TransactionDetail(svc.Ledger, coach, logg))
			r.Get("/commissions/summary", controllers.CommissionSummary(svc.Commissions, coach, logg))
		})
	})

	return r
}
