package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/chequer/internal/adapter/http/handler"
	"github.com/iho/chequer/internal/adapter/http/middleware"
	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/metrics"
	"github.com/iho/chequer/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler   *handler.AccountHandler
	ClearanceHandler *handler.ClearanceHandler
	TransferHandler  *handler.TransferHandler
	HealthHandler    *handler.HealthHandler

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; the endpoint is not mounted when nil.
	Gatherer prometheus.Gatherer

	RateLimiter *middleware.RateLimiter

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration

	// TokenVerifier enables bearer authentication and role checks on /api/v1.
	TokenVerifier middleware.TokenVerifier
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	requireRole := func(min domain.Role) func(http.Handler) http.Handler {
		if cfg.TokenVerifier == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RequireRole(min)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.TokenVerifier != nil {
			r.Use(middleware.AuthMiddleware(cfg.TokenVerifier))
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotency := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Metrics, cfg.Logger)
			r.Use(idempotency.Wrap)
		}

		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.With(requireRole(domain.RoleAdmin)).Post("/", cfg.AccountHandler.Create)
			r.With(requireRole(domain.RoleViewer)).Get("/", cfg.AccountHandler.List)
			r.With(requireRole(domain.RoleViewer)).Get("/{number}", cfg.AccountHandler.Get)
		})

		// Clearances
		r.Route("/clearances", func(r chi.Router) {
			r.With(requireRole(domain.RoleOperator)).Post("/", cfg.ClearanceHandler.Submit)
			r.With(requireRole(domain.RoleOperator)).Post("/{id}/resubmit", cfg.ClearanceHandler.Resubmit)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(domain.RoleViewer))
				r.Get("/", cfg.ClearanceHandler.List)
				r.Get("/queue", cfg.ClearanceHandler.Queue)
				r.Get("/cleared", cfg.ClearanceHandler.Cleared)
				r.Get("/{id}", cfg.ClearanceHandler.Get)
				r.Get("/{id}/events", cfg.ClearanceHandler.Events)
			})
		})

		// Transfers
		r.With(requireRole(domain.RoleAdmin)).Post("/transfers", cfg.TransferHandler.Create)
	})

	return r
}
