package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/theOGognf/finagg/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.deps.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Method(http.MethodGet, "/metrics", newMetricsProxy())

	s.router.Route("/v1", func(r chi.Router) {
		if s.deps.Guards != nil {
			limits := &handlers.RateLimitHandlers{Guards: s.deps.Guards, Families: s.deps.Families}
			r.Get("/ratelimits", limits.List)
			r.Get("/ratelimits/{guard}", limits.Get)
		}

		cache := &handlers.CacheHandlers{Cache: s.deps.Cache}
		r.Get("/cache/stats", cache.Stats)
		r.Post("/cache/prune", cache.Prune)
	})
}
