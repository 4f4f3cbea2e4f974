package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kdduha/apeiron/backend/internal/config"
	"github.com/kdduha/apeiron/backend/internal/metrics"
	"github.com/kdduha/apeiron/backend/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRouter(cfg config.ServerConfig, logger zerolog.Logger, analyze *AnalyzeHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use([]func(http.Handler) http.Handler{
		middleware.RequestID(logger),
		middleware.Logger,
		chimiddleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		metrics.Middleware,
	}...)

	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Group(func(r chi.Router) {
		if cfg.ThrottleLimit > 0 {
			r.Use(chimiddleware.Throttle(cfg.ThrottleLimit))
		}
		if cfg.Timeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.Timeout))
		}
		r.Post("/api/analyze-media", analyze.Analyze)
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", NewStaticHandler(cfg.StaticDir))
	}

	return r
}
