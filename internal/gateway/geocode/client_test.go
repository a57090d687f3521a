package geocode

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, responseBody string, statusCode int) *Client {
	t.Helper()
	return NewClient(
		WithSearchURL("https://nominatim.test/search"),
		WithHTTPClient(&http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				if req.URL.Query().Get("format") != "json" {
					t.Fatalf("expected format=json, got %q", req.URL.Query().Get("format"))
				}
				if req.Header.Get("User-Agent") == "" {
					t.Fatal("expected a user agent header")
				}
				return &http.Response{
					StatusCode: statusCode,
					Header:     make(http.Header),
					Body:       io.NopCloser(strings.NewReader(responseBody)),
				}, nil
			}),
		}),
	)
}

func TestLookupParsesStringCoordinates(t *testing.T) {
	client := newTestClient(t, `[{"lat":"-1.2833","lon":"36.8167","display_name":"Nairobi, Kenya"}]`, http.StatusOK)
	got, err := client.Lookup(context.Background(), "Nairobi")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if math.Abs(got.Lat+1.2833) > 1e-9 || math.Abs(got.Lon-36.8167) > 1e-9 {
		t.Fatalf("unexpected coordinate %+v", got)
	}
}

func TestLookupSkipsUnparseableResults(t *testing.T) {
	client := newTestClient(t, `[{"lat":"n/a","lon":"36.8"},{"lat":-4.04,"lon":39.67}]`, http.StatusOK)
	got, err := client.Lookup(context.Background(), "Mombasa")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Lat != -4.04 || got.Lon != 39.67 {
		t.Fatalf("expected second result, got %+v", got)
	}
}

func TestLookupNoMatch(t *testing.T) {
	client := newTestClient(t, `[]`, http.StatusOK)
	_, err := client.Lookup(context.Background(), "Atlantis")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestLookupUpstreamFailure(t *testing.T) {
	client := newTestClient(t, `busy`, http.StatusServiceUnavailable)
	_, err := client.Lookup(context.Background(), "Nairobi")
	if !errors.Is(err, ErrLookup) {
		t.Fatalf("expected ErrLookup, got %v", err)
	}
	if !strings.Contains(err.Error(), "status=503") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestLookupBlankQuery(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			t.Fatal("blank query must not reach the network")
			return nil, nil
		}),
	}))
	if _, err := client.Lookup(context.Background(), "  "); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}
