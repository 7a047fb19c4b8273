package search

import (
	"encoding/json"
	"slices"

	"github.com/kdimtricp/cinesearch/internal/models"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// State is the display state of a search. Results is set only for
// StatusSuccess and Message only for StatusFailed.
type State struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Results []models.Movie `json:"results"`
}

func Idle() State {
	return State{Status: StatusIdle, Results: []models.Movie{}}
}

func Loading() State {
	return State{Status: StatusLoading, Results: []models.Movie{}}
}

func Success(results []models.Movie) State {
	if results == nil {
		results = []models.Movie{}
	}
	return State{Status: StatusSuccess, Results: results}
}

func Failed(message string) State {
	return State{Status: StatusFailed, Message: message, Results: []models.Movie{}}
}

// clone returns a State whose Results slice shares no backing array with s.
func (s State) clone() State {
	s.Results = slices.Clone(s.Results)
	if s.Results == nil {
		s.Results = []models.Movie{}
	}
	return s
}
