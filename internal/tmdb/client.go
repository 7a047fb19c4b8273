package tmdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kdimtricp/cinesearch/internal/models"
)

const (
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p"

	discoverPath = "/discover/movie"
	searchPath   = "/search/movie"
	trendingPath = "/trending/movie/week"
)

type Client struct {
	token        string
	baseURL      string
	imageBaseURL string
	httpClient   *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithImageBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.imageBaseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient returns a client authenticating with token as a bearer
// credential. An empty token is allowed; every call then fails with a
// config error without touching the network.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:        token,
		baseURL:      DefaultBaseURL,
		imageBaseURL: DefaultImageBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.token != ""
}

// Discover lists movies sorted by popularity.
func (c *Client) Discover(ctx context.Context) ([]models.Movie, error) {
	return c.list(ctx, "tmdb.discover", discoverPath, "sort_by=popularity.desc")
}

// Search runs a keyword search for query.
func (c *Client) Search(ctx context.Context, query string) ([]models.Movie, error) {
	return c.list(ctx, "tmdb.search", searchPath, "query="+EncodeQuery(query))
}

// TrendingWeekly lists this week's trending movies in the provider's order.
func (c *Client) TrendingWeekly(ctx context.Context) ([]models.Movie, error) {
	return c.list(ctx, "tmdb.trending", trendingPath, "")
}

func (c *Client) ImageURL(path string, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.imageBaseURL, size, path)
}

// EncodeQuery percent-encodes s for use as a query value. Spaces become %20
// rather than '+', matching what browsers send.
func EncodeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func (c *Client) list(ctx context.Context, op, path, rawQuery string) ([]models.Movie, error) {
	if !c.Configured() {
		return nil, &models.Error{Kind: models.KindConfig, Op: op, Message: models.ErrMissingCredential.Message}
	}

	fullURL := c.baseURL + path
	if rawQuery != "" {
		fullURL += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &models.Error{Kind: models.KindTransport, Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.Error{Kind: models.KindTransport, Op: op, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.Error{Kind: models.KindTransport, Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.Error{
			Kind: models.KindTransport,
			Op:   op,
			Err:  fmt.Errorf("TMDb API returned status %d", resp.StatusCode),
		}
	}

	var page listResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &models.Error{Kind: models.KindTransport, Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if msg, failed := page.failure(); failed {
		return nil, &models.Error{Kind: models.KindSemantic, Op: op, Message: msg}
	}

	if page.Results == nil {
		return []models.Movie{}, nil
	}
	return page.Results, nil
}

type listResponse struct {
	Page          int             `json:"page"`
	Results       []models.Movie  `json:"results"`
	TotalResults  int             `json:"total_results"`
	Error         json.RawMessage `json:"error"`
	Success       *bool           `json:"success"`
	StatusMessage string          `json:"status_message"`
}

// failure reports whether the body flags an application-level error and the
// message it carries, if any. The flag may be a string, a boolean, an object
// with a message, or TMDb's own success:false envelope.
func (r listResponse) failure() (string, bool) {
	raw := bytes.TrimSpace(r.Error)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) && !bytes.Equal(raw, []byte("false")) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s == "" {
				return r.StatusMessage, r.Success != nil && !*r.Success
			}
			return s, true
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
			return obj.Message, true
		}
		return r.StatusMessage, true
	}
	if r.Success != nil && !*r.Success {
		return r.StatusMessage, true
	}
	return "", false
}
