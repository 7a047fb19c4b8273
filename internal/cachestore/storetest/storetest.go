// Package storetest checks a cachestore.Store implementation against the
// behavior the resolvers rely on.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kdimtricp/cinesearch/internal/cachestore"
	"github.com/kdimtricp/cinesearch/internal/models"
)

// Run exercises a fresh store returned by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) cachestore.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		store := open(t)
		_, err := store.Get(context.Background(), "nope")
		if !errors.Is(err, cachestore.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		rec := newRecord(t, "batman", 5, "Batman", 1)
		rec.SearchTerm = "batman"
		rec.PosterURL = "https://image.tmdb.org/t/p/w500/b.jpg"
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := store.Get(ctx, "batman")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ID != rec.ID || got.MovieID != 5 || got.Title != "Batman" || got.Count != 1 {
			t.Errorf("unexpected record: %+v", got)
		}
		if got.SearchTerm != "batman" || got.PosterURL != rec.PosterURL {
			t.Errorf("unexpected display fields: %+v", got)
		}
		if string(got.Movie) != string(rec.Movie) {
			t.Errorf("movie json = %s, expected %s", got.Movie, rec.Movie)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		if err := store.Create(ctx, newRecord(t, "k", 1, "One", 1)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		err := store.Create(ctx, newRecord(t, "k", 2, "Two", 1))
		if !errors.Is(err, cachestore.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("IncrementCount", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		if err := store.Create(ctx, newRecord(t, "k", 1, "One", 1)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		for i := 0; i < 3; i++ {
			if err := store.IncrementCount(ctx, "k", 1); err != nil {
				t.Fatalf("IncrementCount failed: %v", err)
			}
		}

		got, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Count != 4 {
			t.Errorf("count = %d, expected 4", got.Count)
		}

		if err := store.IncrementCount(ctx, "missing", 1); !errors.Is(err, cachestore.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing key, got %v", err)
		}
	})

	t.Run("TopByCount", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		seed := []struct {
			key   string
			count int64
		}{
			{"a", 2}, {"b", 7}, {"c", 2}, {"d", 9}, {"e", 1}, {"f", 2},
		}
		for i, s := range seed {
			if err := store.Create(ctx, newRecord(t, s.key, int64(i+1), s.key, s.count)); err != nil {
				t.Fatalf("Create %s failed: %v", s.key, err)
			}
		}

		top, err := store.TopByCount(ctx, 4)
		if err != nil {
			t.Fatalf("TopByCount failed: %v", err)
		}

		expected := []string{"d", "b", "a", "c"}
		if len(top) != len(expected) {
			t.Fatalf("expected %d records, got %d", len(expected), len(top))
		}
		for i, key := range expected {
			if top[i].Key != key {
				t.Errorf("position %d: key %s, expected %s", i, top[i].Key, key)
			}
		}
	})

	t.Run("TopByCountEmpty", func(t *testing.T) {
		store := open(t)
		top, err := store.TopByCount(context.Background(), 5)
		if err != nil {
			t.Fatalf("TopByCount failed: %v", err)
		}
		if len(top) != 0 {
			t.Errorf("expected empty result, got %d records", len(top))
		}
	})

	t.Run("Bump", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		movie := models.Movie{ID: 42, Title: "Hitchhiker"}
		for i := 0; i < 3; i++ {
			rec, err := cachestore.NewRecord(cachestore.MovieKey(42), "", "", movie)
			if err != nil {
				t.Fatalf("NewRecord failed: %v", err)
			}
			if err := cachestore.Bump(ctx, store, rec); err != nil {
				t.Fatalf("Bump %d failed: %v", i, err)
			}
		}

		got, err := store.Get(ctx, "movie:42")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Count != 3 {
			t.Errorf("count = %d, expected 3", got.Count)
		}
		if got.Entry().Movie.Title != "Hitchhiker" {
			t.Errorf("entry title = %q", got.Entry().Movie.Title)
		}
	})
}

func newRecord(t *testing.T, key string, movieID int64, title string, count int64) *cachestore.Record {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	return &cachestore.Record{
		ID:        uuid.New().String(),
		Key:       key,
		MovieID:   movieID,
		Title:     title,
		Count:     count,
		Movie:     []byte(fmt.Sprintf(`{"id":%d,"title":%q}`, movieID, title)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
