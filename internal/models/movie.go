package models

import (
	"encoding/json"
	"fmt"
)

// Movie is an upstream movie record. The display fields are decoded for
// rendering and keying; Raw keeps the record exactly as the provider sent it
// and is what gets re-encoded when the movie is served.
type Movie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`

	Raw json.RawMessage `json:"-"`
}

type movieFields struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
}

func (m *Movie) UnmarshalJSON(data []byte) error {
	var f movieFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding movie: %w", err)
	}
	*m = Movie{
		ID:          f.ID,
		Title:       f.Title,
		ReleaseDate: f.ReleaseDate,
		Overview:    f.Overview,
		PosterPath:  f.PosterPath,
		VoteAverage: f.VoteAverage,
		Popularity:  f.Popularity,
	}
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (m Movie) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	return json.Marshal(movieFields{
		ID:          m.ID,
		Title:       m.Title,
		ReleaseDate: m.ReleaseDate,
		Overview:    m.Overview,
		PosterPath:  m.PosterPath,
		VoteAverage: m.VoteAverage,
		Popularity:  m.Popularity,
	})
}

// Year returns the four digit release year, or "" when unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// TrendingEntry is a movie ranked by the cache store's counter. Count is zero
// for entries served straight from the live feed.
type TrendingEntry struct {
	Movie      Movie  `json:"movie"`
	Count      int64  `json:"count"`
	SearchTerm string `json:"search_term,omitempty"`
	PosterURL  string `json:"poster_url,omitempty"`
}
