package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/microgem/storefront-backend/api/controllers"
	cartcontrollers "github.com/microgem/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/microgem/storefront-backend/api/controllers/orders"
	"github.com/microgem/storefront-backend/api/middleware"
	"github.com/microgem/storefront-backend/internal/cart"
	"github.com/microgem/storefront-backend/internal/orders"
	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/logger"
	"github.com/microgem/storefront-backend/pkg/redis"
)

// Deps are the collaborators mounted on the router.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Carts   cart.Service
	Orders  orders.Service
	Redis   *redis.Client
	Ready   map[string]controllers.Pinger
	Metrics prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if cfg.App.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.App.RequestTimeout))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	passthrough := func(next http.Handler) http.Handler { return next }
	cartIdempotency, orderIdempotency, checkoutLimit := passthrough, passthrough, passthrough
	if deps.Redis != nil {
		cartIdempotency = middleware.Idempotency(deps.Redis, middleware.CartIdempotencyTTL, logg)
		orderIdempotency = middleware.Idempotency(deps.Redis, middleware.OrderIdempotencyTTL, logg)
		checkoutLimit = middleware.RateLimit(middleware.CheckoutRateLimitPolicy(cfg.RateLimit), deps.Redis, logg)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.TenantDomain(cfg.Tenant, logg))
		r.Use(middleware.CartToken(cfg.Cart, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartView(deps.Carts, logg))
			r.With(cartIdempotency).Post("/add", cartcontrollers.CartAdd(deps.Carts, logg))
			r.Put("/update", cartcontrollers.CartUpdate(deps.Carts, logg))
			r.Delete("/remove", cartcontrollers.CartRemove(deps.Carts, logg))
			r.Delete("/clear", cartcontrollers.CartClear(deps.Carts, logg))
		})

		r.Route("/order", func(r chi.Router) {
			r.With(checkoutLimit, orderIdempotency).Post("/create", ordercontrollers.OrderCreate(deps.Orders, logg))
		})
	})

	return r
}
