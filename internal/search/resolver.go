package search

import (
	"context"
	"log/slog"

	"github.com/kdimtricp/cinesearch/internal/cachestore"
	"github.com/kdimtricp/cinesearch/internal/metrics"
	"github.com/kdimtricp/cinesearch/internal/models"
)

const (
	MessageNotConfigured = "Movie search is not configured. Set TMDB_API_KEY."
	MessageTransport     = "Error fetching movies. Please try again later."
	MessageSemantic      = "Failed to fetch movies"

	countTaskName = "search-count"
	posterSize    = "w500"
)

type Provider interface {
	Configured() bool
	Discover(ctx context.Context) ([]models.Movie, error)
	Search(ctx context.Context, query string) ([]models.Movie, error)
	ImageURL(path string, size string) string
}

// Spawner runs fn detached from the caller. task.Runner satisfies it.
type Spawner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

type Resolver struct {
	provider Provider
	store    cachestore.Store
	tasks    Spawner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewResolver(provider Provider, store cachestore.Store, tasks Spawner, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider: provider,
		store:    store,
		tasks:    tasks,
		logger:   logger.With("component", "search"),
		metrics:  m,
	}
}

// Resolve runs one search and returns its display state. An empty query lists
// the discovery feed. Failures come back as a Failed state, never as an error.
//
// When a keyword search finds something, the search counter for the top
// result is bumped in the background; that write cannot change the returned
// state.
func (r *Resolver) Resolve(ctx context.Context, query string) State {
	if !r.provider.Configured() {
		r.logger.Warn("search skipped: missing API credential", "query", query)
		r.metrics.SearchResolved(models.KindConfig.String())
		return Failed(MessageNotConfigured)
	}

	var movies []models.Movie
	var err error
	if query == "" {
		movies, err = r.provider.Discover(ctx)
	} else {
		movies, err = r.provider.Search(ctx, query)
	}
	if err != nil {
		kind := models.KindOf(err)
		r.logger.Error("search failed", "query", query, "kind", kind.String(), "error", err)
		r.metrics.SearchResolved(kind.String())
		return Failed(failureMessage(err))
	}

	r.metrics.SearchResolved("success")

	if query != "" && len(movies) > 0 {
		r.countSearch(ctx, query, movies[0])
	}

	return Success(movies)
}

func (r *Resolver) countSearch(ctx context.Context, query string, top models.Movie) {
	if r.store == nil || r.tasks == nil {
		return
	}

	rec, err := cachestore.NewRecord(
		cachestore.SearchKey(query),
		query,
		r.provider.ImageURL(top.PosterPath, posterSize),
		top,
	)
	if err != nil {
		r.logger.Error("search count skipped", "query", query, "movie_id", top.ID, "error", err)
		return
	}

	r.tasks.Go(ctx, countTaskName, func(ctx context.Context) error {
		return cachestore.Bump(ctx, r.store, rec)
	})
}

func failureMessage(err error) string {
	switch models.KindOf(err) {
	case models.KindConfig:
		return MessageNotConfigured
	case models.KindSemantic:
		if msg := models.MessageOf(err); msg != "" {
			return msg
		}
		return MessageSemantic
	default:
		return MessageTransport
	}
}
