package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/commissions/internal/adapter/http/handler"
	"github.com/iho/commissions/internal/adapter/http/middleware"
	"github.com/iho/commissions/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	RegistryHandler        *handler.RegistryHandler
	StatementHandler       *handler.StatementHandler
	SellerStatementHandler *handler.SellerStatementHandler
	DisputeHandler         *handler.DisputeHandler
	HealthHandler          *handler.HealthHandler
	IdempotencyStore       usecase.IdempotencyStore
	IdempotencyTTL         time.Duration
	RateLimiter            *middleware.RateLimiter
	MetricsHandler         http.Handler
	Logger                 zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Master registry
		r.Route("/registry", func(r chi.Router) {
			r.Put("/", cfg.RegistryHandler.Replace)
			r.Get("/", cfg.RegistryHandler.List)
		})

		// Periods
		r.Route("/periods/{period}", func(r chi.Router) {
			r.Route("/statements", func(r chi.Router) {
				r.Post("/", cfg.StatementHandler.Submit)
				r.Get("/", cfg.StatementHandler.List)
				r.Delete("/{id}", cfg.StatementHandler.Retract)
				r.Get("/{id}/matches", cfg.StatementHandler.Matches)
			})

			r.Post("/regenerate", cfg.StatementHandler.Regenerate)

			r.Route("/seller-statements", func(r chi.Router) {
				r.Get("/", cfg.SellerStatementHandler.List)
				r.Get("/{group}", cfg.SellerStatementHandler.Get)
			})

			r.Route("/disputes", func(r chi.Router) {
				r.Post("/detect", cfg.DisputeHandler.Detect)
				r.Get("/", cfg.DisputeHandler.List)
			})
		})

		r.Post("/splits/preview", cfg.StatementHandler.PreviewSplit)
	})

	return r
}
