// Package cachestore defines the document store that holds trending counters
// and the create-or-increment policy applied on top of it.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kdimtricp/cinesearch/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Record is one counter document. Key is unique across the store.
type Record struct {
	ID         string
	Key        string
	MovieID    int64
	Title      string
	SearchTerm string
	PosterURL  string
	Count      int64
	Movie      json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is the cache/document store. TopByCount returns records ordered by
// Count descending, ties in insertion order.
type Store interface {
	TopByCount(ctx context.Context, n int) ([]Record, error)
	Get(ctx context.Context, key string) (*Record, error)
	Create(ctx context.Context, rec *Record) error
	IncrementCount(ctx context.Context, key string, delta int64) error
	Close() error
}

// SearchKey is the counter key for a search that converged on a movie. The
// prefix keeps queries out of the MovieKey namespace.
func SearchKey(query string) string {
	return "search:" + query
}

// MovieKey is the counter key for a movie written back from the live feed.
func MovieKey(id int64) string {
	return "movie:" + strconv.FormatInt(id, 10)
}

// NewRecord builds a record for movie under key with a zero count.
func NewRecord(key, searchTerm, posterURL string, movie models.Movie) (*Record, error) {
	raw, err := json.Marshal(movie)
	if err != nil {
		return nil, fmt.Errorf("encoding movie %d: %w", movie.ID, err)
	}
	return &Record{
		Key:        key,
		MovieID:    movie.ID,
		Title:      movie.Title,
		SearchTerm: searchTerm,
		PosterURL:  posterURL,
		Movie:      raw,
	}, nil
}

// Bump increments the counter stored under rec.Key, creating rec with a
// count of one when no record exists. The increment itself runs inside the
// store.
func Bump(ctx context.Context, store Store, rec *Record) error {
	_, err := store.Get(ctx, rec.Key)
	switch {
	case err == nil:
		return increment(ctx, store, rec.Key)
	case !errors.Is(err, ErrNotFound):
		return persistenceError("get", fmt.Errorf("looking up %q: %w", rec.Key, err))
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Count = 1
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	err = store.Create(ctx, rec)
	if errors.Is(err, ErrAlreadyExists) {
		return increment(ctx, store, rec.Key)
	}
	if err != nil {
		return persistenceError("create", fmt.Errorf("creating %q: %w", rec.Key, err))
	}
	return nil
}

func increment(ctx context.Context, store Store, key string) error {
	if err := store.IncrementCount(ctx, key, 1); err != nil {
		return persistenceError("increment", fmt.Errorf("incrementing %q: %w", key, err))
	}
	return nil
}

func persistenceError(op string, err error) error {
	return &models.Error{Kind: models.KindPersistence, Op: "cachestore." + op, Err: err}
}

// Entry converts a record to the trending entry served to callers. The stored
// upstream JSON is decoded back so cached movies keep their original shape.
func (r Record) Entry() models.TrendingEntry {
	var movie models.Movie
	if len(r.Movie) == 0 || json.Unmarshal(r.Movie, &movie) != nil {
		movie = models.Movie{ID: r.MovieID, Title: r.Title}
	}
	return models.TrendingEntry{
		Movie:      movie,
		Count:      r.Count,
		SearchTerm: r.SearchTerm,
		PosterURL:  r.PosterURL,
	}
}

// Entries converts records, preserving their order.
func Entries(records []Record) []models.TrendingEntry {
	entries := make([]models.TrendingEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.Entry())
	}
	return entries
}
