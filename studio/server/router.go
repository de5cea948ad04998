// Package server exposes an Orchestrator over HTTP.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/video-studio/studio/config"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg config.ServerConfig, h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(logger))
	r.Use(chimw.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	r.Post("/turns", h.SubmitTurn)
	r.Get("/messages", h.Messages)
	r.Post("/messages/{id}/edits", h.ApplyEdit)
	r.Get("/history", h.History)
	r.Get("/events", h.Events)

	r.Get("/profiles", h.Profiles)
	r.Put("/profile", h.SelectProfile)

	r.Get("/artifacts", h.Artifacts)
	r.Get("/stats", h.Stats)
	r.Post("/session/reset", h.ResetSession)

	return r
}

// NewServer wraps the router in an http.Server using the configured timeouts.
// WriteTimeout should stay 0 so /events streams are not cut off.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
