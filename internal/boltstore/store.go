// Package boltstore is an embedded cache store backed by BoltDB.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kdimtricp/cinesearch/internal/cachestore"
)

var bucketTrending = []byte("trending")

// stored is the JSON value kept under each record key. Seq comes from the
// bucket sequence and fixes insertion order for ties.
type stored struct {
	Seq        uint64          `json:"seq"`
	ID         string          `json:"id"`
	MovieID    int64           `json:"movie_id"`
	Title      string          `json:"title"`
	SearchTerm string          `json:"search_term,omitempty"`
	PosterURL  string          `json:"poster_url,omitempty"`
	Count      int64           `json:"count"`
	Movie      json.RawMessage `json:"movie,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTrending)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) TopByCount(ctx context.Context, n int) ([]cachestore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []cachestore.Record
	var seqs []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrending).ForEach(func(k, v []byte) error {
			var st stored
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("decoding %q: %w", k, err)
			}
			all = append(all, st.record(string(k)))
			seqs = append(seqs, st.Seq)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan trending bucket: %w", err)
	}

	idx := make([]int, len(all))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		ra, rb := all[idx[a]], all[idx[b]]
		if ra.Count != rb.Count {
			return ra.Count > rb.Count
		}
		return seqs[idx[a]] < seqs[idx[b]]
	})

	if n > 0 && len(idx) > n {
		idx = idx[:n]
	}
	out := make([]cachestore.Record, 0, len(idx))
	for _, i := range idx {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, key string) (*cachestore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *cachestore.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTrending).Get([]byte(key))
		if v == nil {
			return cachestore.ErrNotFound
		}
		var st stored
		if err := json.Unmarshal(v, &st); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
		r := st.record(key)
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, rec *cachestore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrending)
		if b.Get([]byte(rec.Key)) != nil {
			return cachestore.ErrAlreadyExists
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return put(b, rec.Key, stored{
			Seq:        seq,
			ID:         rec.ID,
			MovieID:    rec.MovieID,
			Title:      rec.Title,
			SearchTerm: rec.SearchTerm,
			PosterURL:  rec.PosterURL,
			Count:      rec.Count,
			Movie:      rec.Movie,
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  rec.UpdatedAt,
		})
	})
}

func (s *Store) IncrementCount(ctx context.Context, key string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrending)
		v := b.Get([]byte(key))
		if v == nil {
			return cachestore.ErrNotFound
		}
		var st stored
		if err := json.Unmarshal(v, &st); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
		st.Count += delta
		st.UpdatedAt = time.Now().UTC()
		return put(b, key, st)
	})
}

func put(b *bolt.Bucket, key string, st stored) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return b.Put([]byte(key), data)
}

func (st stored) record(key string) cachestore.Record {
	return cachestore.Record{
		ID:         st.ID,
		Key:        key,
		MovieID:    st.MovieID,
		Title:      st.Title,
		SearchTerm: st.SearchTerm,
		PosterURL:  st.PosterURL,
		Count:      st.Count,
		Movie:      st.Movie,
		CreatedAt:  st.CreatedAt,
		UpdatedAt:  st.UpdatedAt,
	}
}
