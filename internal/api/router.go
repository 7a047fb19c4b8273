package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: app.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "HX-Request", "HX-Trigger", "HX-Target", "HX-Current-URL"},
	}).Handler)

	r.Get("/", app.HomeHandler)
	r.Get("/ping", PingHandler)

	r.Route("/partials", func(r chi.Router) {
		r.Get("/search", app.SearchPartialHandler)
		r.Get("/trending", app.TrendingPartialHandler)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", app.SearchJSONHandler)
		r.Get("/trending", app.TrendingJSONHandler)
	})

	if app.Metrics != nil {
		r.Handle("/metrics", app.Metrics.Handler())
	}

	return r
}
