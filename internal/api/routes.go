// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/shotline/internal/api/middleware"
	"github.com/ManuGH/shotline/internal/api/problem"
)

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(s.cfg.Stack)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not Found", "ROUTE_NOT_FOUND", "", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusMethodNotAllowed, problem.TypeMethodNotAllow, "Method Not Allowed", "METHOD_NOT_ALLOWED", "", nil)
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	expensive := func(next http.Handler) http.Handler { return next }
	if s.cfg.ChatPerMinute > 0 {
		expensive = middleware.ChatRateLimit(s.cfg.ChatPerMinute)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)

		r.With(expensive).Post("/chat", s.handleChat)
		r.Get("/messages", s.handleListMessages)
		r.Delete("/messages", s.handleClearMessages)

		r.Route("/storyboard", func(r chi.Router) {
			r.Get("/", s.handleGetStoryboard)
			r.Post("/parse", s.handleParseStoryboard)
			r.Post("/reorder", s.handleReorder)
			r.Put("/selection", s.handleSelect)
			r.Post("/shots", s.handleAddShot)
			r.Route("/shots/{shotID}", func(r chi.Router) {
				r.Patch("/", s.handlePatchShot)
				r.Delete("/", s.handleRemoveShot)
				r.With(expensive).Post("/generate", s.handleStartGeneration)
				r.Get("/generation", s.handleGetGeneration)
				r.Delete("/generation", s.handleCancelGeneration)
			})
		})

		r.Route("/runway", func(r chi.Router) {
			r.With(expensive).Post("/generate", s.handleRunwayGenerate)
			r.Get("/status", s.handleRunwayStatus)
		})
	})

	return r
}
