package search

import (
	"context"
	"errors"
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

	mu       sync.Mutex
	discover int
	searches []string
}

func (m *mockProvider) Configured() bool { return m.configured }

func (m *mockProvider) Discover(ctx context.Context) ([]models.Movie, error) {
	m.mu.Lock()
	m.discover++
	m.mu.Unlock()
	return m.movies, m.err
}

func (m *mockProvider) Search(ctx context.Context, query string) ([]models.Movie, error) {
	m.mu.Lock()
	m.searches = append(m.searches, query)
	m.mu.Unlock()
	return m.movies, m.err
}

func (m *mockProvider) ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return "https://img.test/" + size + path
}

// countingStore records writes on top of an in-memory store.
type countingStore struct {
	*cachestore.Memory
	mu      sync.Mutex
	writes  []string
	failing bool
}

func newCountingStore() *countingStore {
	return &countingStore{Memory: cachestore.NewMemory()}
}

func (s *countingStore) Create(ctx context.Context, rec *cachestore.Record) error {
	s.mu.Lock()
	s.writes = append(s.writes, "create:"+rec.Key)
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return errors.New("store unavailable")
	}
	return s.Memory.Create(ctx, rec)
}

func (s *countingStore) IncrementCount(ctx context.Context, key string, delta int64) error {
	s.mu.Lock()
	s.writes = append(s.writes, "increment:"+key)
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return errors.New("store unavailable")
	}
	return s.Memory.IncrementCount(ctx, key, delta)
}

func (s *countingStore) writeLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(p Provider, store cachestore.Store) (*Resolver, *task.Runner) {
	runner := task.NewRunner(discardLogger())
	return NewResolver(p, store, runner, discardLogger(), nil), runner
}

func TestResolve_States(t *testing.T) {
	batman := models.Movie{ID: 5, Title: "Batman", PosterPath: "/b.jpg"}

	tests := []struct {
		name        string
		provider    *mockProvider
		query       string
		wantStatus  Status
		wantMessage string
		wantResults int
	}{
		{
			name:        "missing credential",
			provider:    &mockProvider{configured: false},
			query:       "batman",
			wantStatus:  StatusFailed,
			wantMessage: MessageNotConfigured,
		},
		{
			name:        "success",
			provider:    &mockProvider{configured: true, movies: []models.Movie{batman}},
			query:       "batman",
			wantStatus:  StatusSuccess,
			wantResults: 1,
		},
		{
			name:       "empty discovery",
			provider:   &mockProvider{configured: true, movies: []models.Movie{}},
			query:      "",
			wantStatus: StatusSuccess,
		},
		{
			name: "transport failure",
			provider: &mockProvider{configured: true, err: &models.Error{
				Kind: models.KindTransport, Err: errors.New("TMDb API returned status 503"),
			}},
			query:       "batman",
			wantStatus:  StatusFailed,
			wantMessage: MessageTransport,
		},
		{
			name: "semantic failure with message",
			provider: &mockProvider{configured: true, err: &models.Error{
				Kind: models.KindSemantic, Message: "Invalid API key: You must be granted a valid key.",
			}},
			query:       "batman",
			wantStatus:  StatusFailed,
			wantMessage: "Invalid API key: You must be granted a valid key.",
		},
		{
			name:        "semantic failure without message",
			provider:    &mockProvider{configured: true, err: &models.Error{Kind: models.KindSemantic}},
			query:       "",
			wantStatus:  StatusFailed,
			wantMessage: MessageSemantic,
		},
		{
			name:        "unclassified failure",
			provider:    &mockProvider{configured: true, err: errors.New("weird")},
			query:       "x",
			wantStatus:  StatusFailed,
			wantMessage: MessageTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, runner := newTestResolver(tt.provider, newCountingStore())
			state := resolver.Resolve(context.Background(), tt.query)
			runner.Wait()

			if state.Status != tt.wantStatus {
				t.Errorf("status = %v, expected %v", state.Status, tt.wantStatus)
			}
			if state.Message != tt.wantMessage {
				t.Errorf("message = %q, expected %q", state.Message, tt.wantMessage)
			}
			if len(state.Results) != tt.wantResults {
				t.Errorf("results = %d, expected %d", len(state.Results), tt.wantResults)
			}
			if state.Results == nil {
				t.Error("results must never be nil")
			}
		})
	}
}

func TestResolve_MissingCredentialMakesNoCalls(t *testing.T) {
	provider := &mockProvider{configured: false}
	store := newCountingStore()
	resolver, runner := newTestResolver(provider, store)

	resolver.Resolve(context.Background(), "batman")
	runner.Wait()

	if provider.discover != 0 || len(provider.searches) != 0 {
		t.Errorf("expected no provider calls, got discover=%d searches=%v", provider.discover, provider.searches)
	}
	if writes := store.writeLog(); len(writes) != 0 {
		t.Errorf("expected no writes, got %v", writes)
	}
}

func TestResolve_EndpointChoice(t *testing.T) {
	provider := &mockProvider{configured: true, movies: []models.Movie{}}
	resolver, runner := newTestResolver(provider, newCountingStore())

	resolver.Resolve(context.Background(), "")
	resolver.Resolve(context.Background(), "alien")
	runner.Wait()

	if provider.discover != 1 {
		t.Errorf("discover calls = %d, expected 1", provider.discover)
	}
	if len(provider.searches) != 1 || provider.searches[0] != "alien" {
		t.Errorf("searches = %v, expected [alien]", provider.searches)
	}
}

func TestResolve_CounterWrites(t *testing.T) {
	top := models.Movie{ID: 5, Title: "Batman", PosterPath: "/b.jpg"}
	second := models.Movie{ID: 6, Title: "Batman Returns"}

	tests := []struct {
		name       string
		query      string
		movies     []models.Movie
		err        error
		wantWrites []string
	}{
		{name: "query with results", query: "batman", movies: []models.Movie{top, second}, wantWrites: []string{"create:search:batman"}},
		{name: "query without results", query: "zzzz", movies: []models.Movie{}},
		{name: "empty query", query: "", movies: []models.Movie{top}},
		{name: "failed search", query: "batman", err: &models.Error{Kind: models.KindTransport}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			resolver, runner := newTestResolver(&mockProvider{configured: true, movies: tt.movies, err: tt.err}, store)

			resolver.Resolve(context.Background(), tt.query)
			runner.Wait()

			writes := store.writeLog()
			if len(writes) != len(tt.wantWrites) {
				t.Fatalf("writes = %v, expected %v", writes, tt.wantWrites)
			}
			for i := range writes {
				if writes[i] != tt.wantWrites[i] {
					t.Errorf("write %d = %s, expected %s", i, writes[i], tt.wantWrites[i])
				}
			}
		})
	}
}

func TestResolve_CounterIncrementsExistingRecord(t *testing.T) {
	store := newCountingStore()
	provider := &mockProvider{configured: true, movies: []models.Movie{{ID: 5, Title: "Batman", PosterPath: "/b.jpg"}}}
	resolver, runner := newTestResolver(provider, store)

	resolver.Resolve(context.Background(), "batman")
	runner.Wait()
	resolver.Resolve(context.Background(), "batman")
	runner.Wait()

	rec, err := store.Get(context.Background(), cachestore.SearchKey("batman"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Count != 2 || rec.MovieID != 5 || rec.SearchTerm != "batman" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.PosterURL != "https://img.test/w500/b.jpg" {
		t.Errorf("poster url = %q", rec.PosterURL)
	}

	writes := store.writeLog()
	if len(writes) != 2 || writes[1] != "increment:search:batman" {
		t.Errorf("writes = %v", writes)
	}
}

func TestResolve_CounterFailureDoesNotAffectState(t *testing.T) {
	store := newCountingStore()
	store.failing = true
	provider := &mockProvider{configured: true, movies: []models.Movie{{ID: 5, Title: "Batman"}}}
	resolver, runner := newTestResolver(provider, store)

	state := resolver.Resolve(context.Background(), "batman")
	runner.Wait()

	if state.Status != StatusSuccess || len(state.Results) != 1 {
		t.Errorf("unexpected state: %+v", state)
	}
	if len(store.writeLog()) != 1 {
		t.Errorf("expected one attempted write, got %v", store.writeLog())
	}
}

func TestResolve_EndToEnd(t *testing.T) {
	t.Run("batman", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search/movie" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"results":[{"id":5,"title":"Batman"}],"error":null}`))
		}))
		defer srv.Close()

		store := newCountingStore()
		resolver, runner := newTestResolver(tmdb.NewClient("token", tmdb.WithBaseURL(srv.URL)), store)

		state := resolver.Resolve(context.Background(), "batman")
		runner.Wait()

		if state.Status != StatusSuccess {
			t.Fatalf("status = %v, message %q", state.Status, state.Message)
		}
		if len(state.Results) != 1 || state.Results[0].ID != 5 {
			t.Errorf("unexpected results: %+v", state.Results)
		}
		writes := store.writeLog()
		if len(writes) != 1 || writes[0] != "create:search:batman" {
			t.Fatalf("writes = %v", writes)
		}
		rec, err := store.Get(context.Background(), cachestore.SearchKey("batman"))
		if err != nil || rec.MovieID != 5 {
			t.Errorf("counter record = %+v, err %v", rec, err)
		}
	})

	t.Run("empty discovery", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/discover/movie" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"results":[]}`))
		}))
		defer srv.Close()

		store := newCountingStore()
		resolver, runner := newTestResolver(tmdb.NewClient("token", tmdb.WithBaseURL(srv.URL)), store)

		state := resolver.Resolve(context.Background(), "")
		runner.Wait()

		if state.Status != StatusSuccess || state.Message != "" || len(state.Results) != 0 {
			t.Errorf("unexpected state: %+v", state)
		}
		if writes := store.writeLog(); len(writes) != 0 {
			t.Errorf("expected no writes, got %v", writes)
		}
	})

	t.Run("embedded error flag", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results":[{"id":1}],"error":"Service temporarily offline"}`))
		}))
		defer srv.Close()

		resolver, runner := newTestResolver(tmdb.NewClient("token", tmdb.WithBaseURL(srv.URL)), newCountingStore())

		state := resolver.Resolve(context.Background(), "batman")
		runner.Wait()

		if state.Status != StatusFailed || state.Message != "Service temporarily offline" {
			t.Errorf("unexpected state: %+v", state)
		}
	})
}
