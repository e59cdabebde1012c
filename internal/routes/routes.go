package routes

import (
	"net/http"

	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options controls the optional parts of the route table
type Options struct {
	RateLimit      middleware.RateLimitConfig
	Identity       middleware.IdentityFunc
	MetricsEnabled bool
	MetricsHandler http.Handler // defaults to promhttp.Handler()
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	opts Options,
) {
	router.Get("/health", healthHandler.Health)

	if opts.MetricsEnabled {
		metricsHandler := opts.MetricsHandler
		if metricsHandler == nil {
			metricsHandler = promhttp.Handler()
		}
		router.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// Login is the only gated route
	router.With(middleware.RateLimitByIdentity(opts.RateLimit, opts.Identity)).Post("/auth/login", authHandler.Login)
}
