package trending

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kdimtricp/cinesearch/internal/cachestore"
	"github.com/kdimtricp/cinesearch/internal/metrics"
	"github.com/kdimtricp/cinesearch/internal/models"
)

const (
	DefaultLimit        = 10
	DefaultPersistLimit = 20

	persistTaskName = "trending-persist"
	posterSize      = "w500"
)

type Provider interface {
	Configured() bool
	TrendingWeekly(ctx context.Context) ([]models.Movie, error)
	ImageURL(path string, size string) string
}

// Spawner runs fn detached from the caller. task.Runner satisfies it.
type Spawner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// Source names the terminal state a resolution ended in.
type Source string

const (
	SourceCache    Source = "cache"
	SourceLive     Source = "live"
	SourceDegraded Source = "degraded"
)

type Result struct {
	Source  Source                 `json:"source"`
	Entries []models.TrendingEntry `json:"results"`
}

type Resolver struct {
	provider     Provider
	store        cachestore.Store
	tasks        Spawner
	logger       *slog.Logger
	metrics      *metrics.Metrics
	limit        int
	persistLimit int
}

type Option func(*Resolver)

// WithLimit sets how many cached entries are served.
func WithLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithPersistLimit sets how many live results are written back.
func WithPersistLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.persistLimit = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func NewResolver(provider Provider, store cachestore.Store, tasks Spawner, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		provider:     provider,
		store:        store,
		tasks:        tasks,
		logger:       logger.With("component", "trending"),
		limit:        DefaultLimit,
		persistLimit: DefaultPersistLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve decides where the trending list comes from and returns it. It
// never fails: every error degrades to the best list available, possibly
// empty.
func (r *Resolver) Resolve(ctx context.Context) Result {
	m := &machine{r: r, stage: stageCheckCache}
	handlers := m.handlers()
	for m.stage != stageDone {
		m.stage = handlers[m.stage](ctx)
	}
	r.metrics.TrendingResolved(string(m.result.Source))
	return m.result
}

type stage int

const (
	stageCheckCache stage = iota
	stageCheckConfig
	stageFetchLive
	stageDegraded
	stageServeLive
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageCheckCache:
		return "check-cache"
	case stageCheckConfig:
		return "check-config"
	case stageFetchLive:
		return "fetch-live"
	case stageDegraded:
		return "degraded"
	case stageServeLive:
		return "serve-live"
	default:
		return "done"
	}
}

// machine carries one resolution through its stages. Each handler does the
// work of its stage and names the next one.
type machine struct {
	r      *Resolver
	stage  stage
	live   []models.Movie
	result Result
}

func (m *machine) handlers() map[stage]func(context.Context) stage {
	return map[stage]func(context.Context) stage{
		stageCheckCache:  m.checkCache,
		stageCheckConfig: m.checkConfig,
		stageFetchLive:   m.fetchLive,
		stageDegraded:    m.degraded,
		stageServeLive:   m.serveLive,
	}
}

func (m *machine) checkCache(ctx context.Context) stage {
	entries, err := m.r.readCache(ctx)
	if err != nil {
		m.r.logger.Warn("trending cache read failed", "stage", m.stage.String(), "error", err)
		return stageCheckConfig
	}
	if len(entries) == 0 {
		return stageCheckConfig
	}
	m.result = Result{Source: SourceCache, Entries: entries}
	return stageDone
}

func (m *machine) checkConfig(ctx context.Context) stage {
	if !m.r.provider.Configured() {
		m.r.logger.Error("trending live feed unavailable", "error", models.ErrMissingCredential)
		return stageDegraded
	}
	return stageFetchLive
}

func (m *machine) fetchLive(ctx context.Context) stage {
	movies, err := m.r.provider.TrendingWeekly(ctx)
	if err != nil {
		m.r.logger.Error("trending live feed failed", "kind", models.KindOf(err).String(), "error", err)
		return stageDegraded
	}
	m.live = movies
	return stageServeLive
}

func (m *machine) degraded(ctx context.Context) stage {
	entries, err := m.r.readCache(ctx)
	if err != nil {
		m.r.logger.Error("trending last-resort cache read failed", "error", err)
		entries = []models.TrendingEntry{}
	}
	m.result = Result{Source: SourceDegraded, Entries: entries}
	return stageDone
}

func (m *machine) serveLive(ctx context.Context) stage {
	m.r.persist(ctx, m.live)

	entries := make([]models.TrendingEntry, 0, len(m.live))
	for _, movie := range m.live {
		entries = append(entries, models.TrendingEntry{
			Movie:     movie,
			PosterURL: m.r.provider.ImageURL(movie.PosterPath, posterSize),
		})
	}
	m.result = Result{Source: SourceLive, Entries: entries}
	return stageDone
}

func (r *Resolver) readCache(ctx context.Context) ([]models.TrendingEntry, error) {
	if r.store == nil {
		return nil, fmt.Errorf("no cache store configured")
	}
	records, err := r.store.TopByCount(ctx, r.limit)
	if err != nil {
		return nil, err
	}
	return cachestore.Entries(records), nil
}

// persist writes the first persistLimit live movies back to the store in the
// background. The caller's result never waits on it.
func (r *Resolver) persist(ctx context.Context, live []models.Movie) {
	if r.store == nil || r.tasks == nil || len(live) == 0 {
		return
	}

	batch := live
	if len(batch) > r.persistLimit {
		batch = batch[:r.persistLimit]
	}

	records := make([]*cachestore.Record, 0, len(batch))
	for _, movie := range batch {
		rec, err := cachestore.NewRecord(
			cachestore.MovieKey(movie.ID),
			"",
			r.provider.ImageURL(movie.PosterPath, posterSize),
			movie,
		)
		if err != nil {
			r.logger.Error("trending persist skipped movie", "movie_id", movie.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}

	r.tasks.Go(ctx, persistTaskName, func(ctx context.Context) error {
		failed := 0
		var firstErr error
		for _, rec := range records {
			if err := cachestore.Bump(ctx, r.store, rec); err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if firstErr != nil {
			return fmt.Errorf("persisted %d of %d trending movies: %w", len(records)-failed, len(records), firstErr)
		}
		return nil
	})
}
