package api

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/cinesearch/internal/metrics"
	"github.com/kdimtricp/cinesearch/internal/search"
	"github.com/kdimtricp/cinesearch/internal/trending"
)

//go:embed templates/*.html
var templateFS embed.FS

const posterSize = "w342"

type SearchResolver interface {
	Resolve(ctx context.Context, query string) search.State
}

type TrendingResolver interface {
	Resolve(ctx context.Context) trending.Result
}

// ImageLinker builds poster URLs for search results. tmdb.Client satisfies it.
type ImageLinker interface {
	ImageURL(path string, size string) string
}

type App struct {
	Search      SearchResolver
	Trending    TrendingResolver
	Images      ImageLinker
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	CORSOrigins []string

	templates *template.Template
}

func NewApp(searchResolver SearchResolver, trendingResolver TrendingResolver, images ImageLinker, m *metrics.Metrics, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Search:      searchResolver,
		Trending:    trendingResolver,
		Images:      images,
		Metrics:     m,
		Logger:      logger.With("component", "api"),
		CORSOrigins: []string{"*"},
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"poster": app.posterURL,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	app.templates = tmpl

	return app, nil
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type homeData struct {
	Title    string
	Search   search.State
	Trending trending.Result
}

// HomeHandler renders the page with the discovery feed and the trending list,
// resolved concurrently.
func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	data := homeData{Title: "CineSearch"}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		data.Search = app.Search.Resolve(ctx, "")
		return nil
	})
	g.Go(func() error {
		data.Trending = app.Trending.Resolve(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		app.Logger.Error("home page resolution failed", "error", err)
		http.Error(w, "Error loading page", http.StatusInternalServerError)
		return
	}

	app.render(w, "base.html", data)
}

func (app *App) SearchPartialHandler(w http.ResponseWriter, r *http.Request) {
	state := app.Search.Resolve(r.Context(), r.URL.Query().Get("q"))
	app.render(w, "search_results.html", state)
}

func (app *App) TrendingPartialHandler(w http.ResponseWriter, r *http.Request) {
	result := app.Trending.Resolve(r.Context())
	app.render(w, "trending.html", result)
}

// SearchJSONHandler always answers 200: a failed search is a display state,
// not a transport error.
func (app *App) SearchJSONHandler(w http.ResponseWriter, r *http.Request) {
	state := app.Search.Resolve(r.Context(), r.URL.Query().Get("q"))
	app.writeJSON(w, state)
}

func (app *App) TrendingJSONHandler(w http.ResponseWriter, r *http.Request) {
	result := app.Trending.Resolve(r.Context())
	app.writeJSON(w, result)
}

func (app *App) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.templates.ExecuteTemplate(w, name, data); err != nil {
		app.Logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

func (app *App) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Error("json encode failed", "error", err)
	}
}

func (app *App) posterURL(path string) string {
	if app.Images == nil || path == "" {
		return ""
	}
	return app.Images.ImageURL(path, posterSize)
}
