package api

import (
	"errors"
	"fmt"
	"strings"
)

const maxErrorBodyPreview = 800

var (
	// ErrUpstream indicates a transport failure or a non-2xx response.
	ErrUpstream = errors.New("error when trying to get response from users api")
	// ErrUnexpectedResponse indicates a response that does not match the documented shape.
	ErrUnexpectedResponse = errors.New("unexpected response shape")
)

// UpstreamRequestError carries HTTP context for failed upstream calls.
type UpstreamRequestError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Body       string
	Cause      error
}

func (e *UpstreamRequestError) Error() string {
	parts := []string{ErrUpstream.Error()}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	method := strings.TrimSpace(e.Method)
	url := strings.TrimSpace(e.URL)
	if method != "" || url != "" {
		parts = append(parts, strings.TrimSpace(method+" "+url))
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("message=%q", e.Message))
	} else if trimmed := compactBodyPreview(e.Body); trimmed != "" {
		parts = append(parts, fmt.Sprintf("body=%q", trimmed))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	return strings.Join(parts, "; ")
}

func (e *UpstreamRequestError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Cause}
}

// Rejected reports whether the server answered with a non-2xx status.
func (e *UpstreamRequestError) Rejected() bool {
	return e.StatusCode > 0 && (e.StatusCode < 200 || e.StatusCode >= 300)
}

// UserMessage returns the server-provided message, if any.
func (e *UpstreamRequestError) UserMessage() string {
	return strings.TrimSpace(e.Message)
}

func compactBodyPreview(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > maxErrorBodyPreview {
		return body[:maxErrorBodyPreview] + "..."
	}
	return body
}
