// Package geocode resolves place names to coordinates with OSM Nominatim,
// the search service behind the same OpenStreetMap data the map tiles use.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

const (
	defaultSearchURL = "https://nominatim.openstreetmap.org/search"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "fieldmap-cli/1.0"
	maxResponseBytes = 1 << 20
)

var (
	// ErrLookup is returned when the search service cannot be queried.
	ErrLookup = errors.New("error when trying to get location")
	// ErrNoMatch is returned when the search has no usable result.
	ErrNoMatch = errors.New("no location matches the query")
)

// HTTPClient executes HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client resolves place names to coordinates.
type Client struct {
	httpClient HTTPClient
	searchURL  string
	userAgent  string
}

// Option applies Client options.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSearchURL points lookups at another Nominatim-compatible endpoint.
func WithSearchURL(searchURL string) Option {
	return func(c *Client) {
		c.searchURL = strings.TrimSpace(searchURL)
	}
}

// WithTimeout sets the default HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewClient creates a geocoding client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		searchURL:  defaultSearchURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResult struct {
	Lat domain.CoordinateValue `json:"lat"`
	Lon domain.CoordinateValue `json:"lon"`
}

// Lookup returns the best match for query.
func (c *Client) Lookup(ctx context.Context, query string) (domain.Coordinate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Coordinate{}, ErrNoMatch
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return domain.Coordinate{}, fmt.Errorf("%w: status=%d", ErrLookup, res.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&results); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	for _, result := range results {
		if result.Lat.Valid && result.Lon.Valid {
			return domain.Coordinate{Lat: result.Lat.Value, Lon: result.Lon.Value}, nil
		}
	}
	return domain.Coordinate{}, fmt.Errorf("%w: %q", ErrNoMatch, query)
}
