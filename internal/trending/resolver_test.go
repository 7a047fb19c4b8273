package trending

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kdimtricp/cinesearch/internal/cachestore"
	"github.com/kdimtricp/cinesearch/internal/models"
	"github.com/kdimtricp/cinesearch/internal/task"
	"github.com/kdimtricp/cinesearch/internal/tmdb"
)

type mockProvider struct {
	configured bool
	movies     []models.Movie
	err        error

	mu    sync.Mutex
	calls int
}

func (m *mockProvider) Configured() bool { return m.configured }

func (m *mockProvider) TrendingWeekly(ctx context.Context) ([]models.Movie, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.movies, m.err
}

func (m *mockProvider) ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return "https://img.test/" + size + path
}

// scriptedStore serves TopByCount results from a script, one per call, and
// records every write.
type scriptedStore struct {
	*cachestore.Memory

	mu     sync.Mutex
	reads  []readResult
	nreads int
	keys   []string
}

type readResult struct {
	records []cachestore.Record
	err     error
}

func (s *scriptedStore) TopByCount(ctx context.Context, n int) ([]cachestore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nreads++
	if len(s.reads) == 0 {
		return []cachestore.Record{}, nil
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r.records, r.err
}

func (s *scriptedStore) Create(ctx context.Context, rec *cachestore.Record) error {
	s.mu.Lock()
	s.keys = append(s.keys, rec.Key)
	s.mu.Unlock()
	return s.Memory.Create(ctx, rec)
}

func (s *scriptedStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nreads
}

func (s *scriptedStore) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func newScriptedStore(reads ...readResult) *scriptedStore {
	return &scriptedStore{Memory: cachestore.NewMemory(), reads: reads}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cachedRecords(n int) []cachestore.Record {
	records := make([]cachestore.Record, 0, n)
	for i := 0; i < n; i++ {
		id := int64(100 + i)
		records = append(records, cachestore.Record{
			Key:     cachestore.MovieKey(id),
			MovieID: id,
			Title:   fmt.Sprintf("Cached %d", i),
			Count:   int64(n - i),
			Movie:   []byte(fmt.Sprintf(`{"id":%d,"title":"Cached %d"}`, id, i)),
		})
	}
	return records
}

func liveMovies(n int) []models.Movie {
	movies := make([]models.Movie, 0, n)
	for i := 0; i < n; i++ {
		movies = append(movies, models.Movie{ID: int64(i + 1), Title: fmt.Sprintf("Live %d", i), PosterPath: "/p.jpg"})
	}
	return movies
}

func TestResolve_CacheTakesPrecedence(t *testing.T) {
	provider := &mockProvider{configured: true, movies: liveMovies(3)}
	store := newScriptedStore(readResult{records: cachedRecords(5)})
	runner := task.NewRunner(discardLogger())
	resolver := NewResolver(provider, store, runner, discardLogger())

	result := resolver.Resolve(context.Background())
	runner.Wait()

	if result.Source != SourceCache {
		t.Errorf("source = %s, expected cache", result.Source)
	}
	if len(result.Entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(result.Entries))
	}
	for i, entry := range result.Entries {
		if entry.Movie.ID != int64(100+i) {
			t.Errorf("entry %d: movie %d, expected stored order", i, entry.Movie.ID)
		}
	}
	if provider.calls != 0 {
		t.Errorf("live feed called %d times, expected 0", provider.calls)
	}
	if writes := store.written(); len(writes) != 0 {
		t.Errorf("expected no writes, got %v", writes)
	}
}

func TestResolve_LiveWhenCacheEmpty(t *testing.T) {
	live := liveMovies(25)
	provider := &mockProvider{configured: true, movies: live}
	store := newScriptedStore(readResult{records: []cachestore.Record{}})
	runner := task.NewRunner(discardLogger())
	resolver := NewResolver(provider, store, runner, discardLogger())

	result := resolver.Resolve(context.Background())
	runner.Wait()

	if result.Source != SourceLive {
		t.Errorf("source = %s, expected live", result.Source)
	}
	if len(result.Entries) != len(live) {
		t.Fatalf("expected %d entries, got %d", len(live), len(result.Entries))
	}
	for i, entry := range result.Entries {
		if entry.Movie.ID != live[i].ID {
			t.Errorf("entry %d: movie %d, expected %d", i, entry.Movie.ID, live[i].ID)
		}
	}

	writes := store.written()
	if len(writes) != DefaultPersistLimit {
		t.Fatalf("expected %d persisted entries, got %d", DefaultPersistLimit, len(writes))
	}
	for i, key := range writes {
		if key != cachestore.MovieKey(live[i].ID) {
			t.Errorf("write %d: key %s, expected %s", i, key, cachestore.MovieKey(live[i].ID))
		}
	}

	rec, err := store.Memory.Get(context.Background(), cachestore.MovieKey(1))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Count != 1 || rec.PosterURL != "https://img.test/w500/p.jpg" {
		t.Errorf("unexpected persisted record: %+v", rec)
	}
}

func TestResolve_LiveWhenCacheFails(t *testing.T) {
	provider := &mockProvider{configured: true, movies: liveMovies(2)}
	store := newScriptedStore(readResult{err: errors.New("store offline")})
	runner := task.NewRunner(discardLogger())
	resolver := NewResolver(provider, store, runner, discardLogger())

	result := resolver.Resolve(context.Background())
	runner.Wait()

	if result.Source != SourceLive || len(result.Entries) != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

// blockingStore holds every write until released, so the test can observe
// that Resolve returned first.
type blockingStore struct {
	*cachestore.Memory
	release chan struct{}
}

func (s *blockingStore) Get(ctx context.Context, key string) (*cachestore.Record, error) {
	<-s.release
	return s.Memory.Get(ctx, key)
}

func TestResolve_DoesNotWaitForPersistence(t *testing.T) {
	provider := &mockProvider{configured: true, movies: liveMovies(3)}
	store := &blockingStore{Memory: cachestore.NewMemory(), release: make(chan struct{})}
	runner := task.NewRunner(discardLogger())
	resolver := NewResolver(provider, store, runner, discardLogger())

	result := resolver.Resolve(context.Background())
	if result.Source != SourceLive || len(result.Entries) != 3 {
		t.Errorf("unexpected result: %+v", result)
	}

	close(store.release)
	runner.Wait()
}

func TestResolve_PersistFailureIsNotSurfaced(t *testing.T) {
	provider := &mockProvider{configured: true, movies: liveMovies(2)}
	store := &failingStore{Memory: cachestore.NewMemory()}
	runner := task.NewRunner(discardLogger())
	resolver := NewResolver(provider, store, runner, discardLogger())

	result := resolver.Resolve(context.Background())
	runner.Wait()

	if result.Source != SourceLive || len(result.Entries) != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

type failingStore struct {
	*cachestore.Memory
}

func (failingStore) Create(ctx context.Context, rec *cachestore.Record) error {
	return errors.New("disk full")
}

func TestResolve_Degraded(t *testing.T) {
	tests := []struct {
		name        string
		provider    *mockProvider
		reads       []readResult
		wantEntries int
		wantCalls   int
	}{
		{
			name:      "missing credential, empty cache",
			provider:  &mockProvider{configured: false},
			wantCalls: 0,
		},
		{
			name:     "missing credential, cache fills in on second read",
			provider: &mockProvider{configured: false},
			reads: []readResult{
				{err: errors.New("timeout")},
				{records: cachedRecords(2)},
			},
			wantEntries: 2,
			wantCalls:   0,
		},
		{
			name: "transport failure",
			provider: &mockProvider{configured: true, err: &models.Error{
				Kind: models.KindTransport, Err: errors.New("TMDb API returned status 500"),
			}},
			wantCalls: 1,
		},
		{
			name:      "semantic failure",
			provider:  &mockProvider{configured: true, err: &models.Error{Kind: models.KindSemantic, Message: "nope"}},
			wantCalls: 1,
		},
		{
			name:     "both reads fail",
			provider: &mockProvider{configured: true, err: &models.Error{Kind: models.KindTransport}},
			reads: []readResult{
				{err: errors.New("down")},
				{err: errors.New("still down")},
			},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newScriptedStore(tt.reads...)
			runner := task.NewRunner(discardLogger())
			resolver := NewResolver(tt.provider, store, runner, discardLogger())

			result := resolver.Resolve(context.Background())
			runner.Wait()

			if result.Source != SourceDegraded {
				t.Errorf("source = %s, expected degraded", result.Source)
			}
			if result.Entries == nil {
				t.Fatal("entries must be an empty list, not nil")
			}
			if len(result.Entries) != tt.wantEntries {
				t.Errorf("entries = %d, expected %d", len(result.Entries), tt.wantEntries)
			}
			if store.readCount() != 2 {
				t.Errorf("cache reads = %d, expected 2", store.readCount())
			}
			if tt.provider.calls != tt.wantCalls {
				t.Errorf("live calls = %d, expected %d", tt.provider.calls, tt.wantCalls)
			}
			if writes := store.written(); len(writes) != 0 {
				t.Errorf("expected no writes, got %v", writes)
			}
		})
	}
}

func TestResolve_Limits(t *testing.T) {
	var requested int
	store := &limitStore{Memory: cachestore.NewMemory(), requested: &requested}
	provider := &mockProvider{configured: true, movies: liveMovies(8)}
	runner := task.NewRunner(discardLogger())
	resolver := NewResolver(provider, store, runner, discardLogger(), WithLimit(3), WithPersistLimit(4))

	resolver.Resolve(context.Background())
	runner.Wait()

	if requested != 3 {
		t.Errorf("cache asked for %d entries, expected 3", requested)
	}
	top, _ := store.Memory.TopByCount(context.Background(), 0)
	if len(top) != 4 {
		t.Errorf("persisted %d entries, expected 4", len(top))
	}
}

type limitStore struct {
	*cachestore.Memory
	requested *int
}

func (s *limitStore) TopByCount(ctx context.Context, n int) ([]cachestore.Record, error) {
	*s.requested = n
	return []cachestore.Record{}, nil
}

func TestResolve_EndToEndWithMemoryStore(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		if r.URL.Path != "/trending/movie/week" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"id":1,"title":"One"},{"id":2,"title":"Two"}]}`))
	}))
	defer srv.Close()

	store := cachestore.NewMemory()
	runner := task.NewRunner(discardLogger())
	resolver := NewResolver(tmdb.NewClient("token", tmdb.WithBaseURL(srv.URL)), store, runner, discardLogger())

	first := resolver.Resolve(context.Background())
	runner.Wait()
	if first.Source != SourceLive || len(first.Entries) != 2 {
		t.Fatalf("first resolution: %+v", first)
	}

	second := resolver.Resolve(context.Background())
	runner.Wait()
	if second.Source != SourceCache {
		t.Fatalf("second resolution source = %s, expected cache", second.Source)
	}
	if len(second.Entries) != 2 || second.Entries[0].Movie.ID != 1 || second.Entries[1].Movie.ID != 2 {
		t.Errorf("unexpected cached entries: %+v", second.Entries)
	}
	if calls != 1 {
		t.Errorf("live feed called %d times, expected 1", calls)
	}
}
