package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

const (
	// ProductionBaseURL is the API host used by production builds.
	ProductionBaseURL = "http://38.242.243.113:4035"
	// DefaultDevelopmentOrigin is the dev proxy that relative API paths resolve against.
	DefaultDevelopmentOrigin = "http://localhost:3000"

	loginPath = "/api/users/login"
	usersPath = "/api/users"

	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "fieldmap-cli/1.0"
	maxResponseBytes = 10 << 20
)

// HTTPClient is implemented by http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoints stores upstream endpoint urls.
type Endpoints struct {
	Login string
	Users string
}

// BaseURL returns the prefix prepended to API paths for the given mode.
// Production talks to the fixed external host. Development adds no API
// host of its own, so paths stay relative to the configured origin.
func BaseURL(mode domain.Mode, origin string) string {
	if mode == domain.ModeProduction {
		return ProductionBaseURL
	}
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return DefaultDevelopmentOrigin
	}
	return origin
}

// EndpointsFor builds the endpoint set under a base URL.
func EndpointsFor(baseURL string) Endpoints {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return Endpoints{
		Login: baseURL + loginPath,
		Users: baseURL + usersPath,
	}
}

// Client queries the users API.
type Client struct {
	httpClient     HTTPClient
	endpoints      Endpoints
	userAgent      string
	verboseOutput  io.Writer
	verboseOutputM sync.RWMutex
}

// Option applies Client options.
type Option func(*Client)

// WithHTTPClient replaces default HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithEndpoints replaces default endpoint set.
func WithEndpoints(endpoints Endpoints) Option {
	return func(c *Client) {
		c.endpoints = endpoints
	}
}

// WithBaseURL points every endpoint at baseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.endpoints = EndpointsFor(baseURL)
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

// WithVerboseOutput enables per-request trace output for upstream HTTP calls.
func WithVerboseOutput(out io.Writer) Option {
	return func(c *Client) {
		c.SetVerboseOutput(out)
	}
}

// NewClient creates an API client for development mode unless options say otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		endpoints:  EndpointsFor(BaseURL(domain.ModeDevelopment, "")),
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetVerboseOutput sets destination for verbose HTTP request trace lines.
func (c *Client) SetVerboseOutput(out io.Writer) {
	c.verboseOutputM.Lock()
	c.verboseOutput = out
	c.verboseOutputM.Unlock()
}

// SetEndpoints replaces the endpoint set after construction.
func (c *Client) SetEndpoints(endpoints Endpoints) {
	c.endpoints = endpoints
}

// Endpoints returns the active endpoint set.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Login submits credentials to the authentication endpoint.
func (c *Client) Login(ctx context.Context, credentials domain.Credentials) (LoginResult, error) {
	raw, err := c.doJSONRequest(ctx, http.MethodPost, c.endpoints.Login, credentials)
	if err != nil {
		return LoginResult{}, err
	}

	var payload struct {
		Token string          `json:"token"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return LoginResult{}, c.shapeError(http.MethodPost, c.endpoints.Login, raw, err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return LoginResult{}, c.shapeError(http.MethodPost, c.endpoints.Login, raw, fmt.Errorf("token is missing"))
	}
	user := payload.Data
	if len(bytes.TrimSpace(user)) == 0 {
		user = json.RawMessage("null")
	}
	return LoginResult{Token: domain.Token(payload.Token), User: user}, nil
}

// Users fetches every user with its last known location.
func (c *Client) Users(ctx context.Context) ([]domain.UserLocation, error) {
	raw, err := c.doJSONRequest(ctx, http.MethodGet, c.endpoints.Users, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data *[]domain.UserLocation `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, c.shapeError(http.MethodGet, c.endpoints.Users, raw, err)
	}
	if payload.Data == nil {
		return []domain.UserLocation{}, nil
	}
	return *payload.Data, nil
}

func (c *Client) shapeError(method, rawURL string, raw []byte, cause error) error {
	return &UpstreamRequestError{
		Method:     method,
		URL:        rawURL,
		StatusCode: http.StatusOK,
		Body:       string(raw),
		Cause:      fmt.Errorf("%w: %v", ErrUnexpectedResponse, cause),
	}
}

func (c *Client) doJSONRequest(ctx context.Context, method, rawURL string, body any) ([]byte, error) {
	var bodyReader io.Reader
	bodyBytes := 0
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyBytes = len(payload)
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	startedAt := time.Now()
	c.traceRequestStart(method, rawURL, bodyBytes)

	res, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErr := &UpstreamRequestError{
			Method: method,
			URL:    rawURL,
			Cause:  err,
		}
		c.traceRequestDone(method, rawURL, 0, 0, startedAt, upstreamErr)
		return nil, upstreamErr
	}
	defer func() {
		_ = res.Body.Close()
	}()

	rawResponse, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		upstreamErr := &UpstreamRequestError{
			Method:     method,
			URL:        rawURL,
			StatusCode: res.StatusCode,
			Cause:      fmt.Errorf("read response body: %w", err),
		}
		c.traceRequestDone(method, rawURL, res.StatusCode, 0, startedAt, upstreamErr)
		return nil, upstreamErr
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		upstreamErr := &UpstreamRequestError{
			Method:     method,
			URL:        rawURL,
			StatusCode: res.StatusCode,
			Message:    errorMessage(rawResponse),
			Body:       string(rawResponse),
		}
		c.traceRequestDone(method, rawURL, res.StatusCode, len(rawResponse), startedAt, upstreamErr)
		return nil, upstreamErr
	}

	c.traceRequestDone(method, rawURL, res.StatusCode, len(rawResponse), startedAt, nil)
	return rawResponse, nil
}

func errorMessage(raw []byte) string {
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if text, ok := payload.Message.(string); ok {
		return strings.TrimSpace(text)
	}
	return ""
}

func (c *Client) traceRequestStart(method, rawURL string, bodyBytes int) {
	if bodyBytes > 0 {
		c.tracef("[http] -> %s %s body_bytes=%d", method, rawURL, bodyBytes)
		return
	}
	c.tracef("[http] -> %s %s", method, rawURL)
}

func (c *Client) traceRequestDone(method, rawURL string, statusCode int, responseBytes int, startedAt time.Time, reqErr error) {
	duration := time.Since(startedAt).Round(time.Millisecond)
	if reqErr != nil {
		c.tracef("[http] <- %s %s error=%v duration=%s", method, rawURL, reqErr, duration)
		return
	}
	c.tracef(
		"[http] <- %s %s status=%d duration=%s bytes=%d",
		method,
		rawURL,
		statusCode,
		duration,
		responseBytes,
	)
}

func (c *Client) tracef(format string, args ...any) {
	c.verboseOutputM.RLock()
	out := c.verboseOutput
	c.verboseOutputM.RUnlock()
	if out == nil {
		return
	}
	_, _ = fmt.Fprintf(out, format+"\n", args...)
}
