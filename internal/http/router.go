package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine Engine
	Logger *slog.Logger
}

// NewRouter creates the JSON API router.
func NewRouter(deps *Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{engine: deps.Engine}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(logger))
	r.Use(CORS)

	r.Get("/healthz", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/query", h.query)
		r.Post("/retrieve", h.retrieve)
		r.Get("/stats", h.stats)
		r.Post("/rebuild", h.rebuild)
	})
	return r
}
