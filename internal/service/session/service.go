// Package session reads the login handoff back into a session for the
// screens that follow the login screen.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mekedron/fieldmap-cli/internal/config"
	"github.com/mekedron/fieldmap-cli/internal/domain"
)

// ErrNoSession indicates no login handoff is stored.
var ErrNoSession = errors.New("no session found; run login first")

// Store provides the handoff values.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Clear(ctx context.Context) error
}

// Service resolves the stored session.
type Service struct {
	store Store
}

// NewService creates a session service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Current returns the session the last successful login left behind.
func (s *Service) Current(ctx context.Context) (domain.Session, error) {
	token, err := s.store.Get(ctx, domain.HandoffTokenKey)
	if errors.Is(err, config.ErrHandoffKeyNotFound) || (err == nil && strings.TrimSpace(token) == "") {
		return domain.Session{}, ErrNoSession
	}
	if err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{Token: domain.Token(token), User: json.RawMessage("null")}
	user, err := s.store.Get(ctx, domain.HandoffUserKey)
	switch {
	case errors.Is(err, config.ErrHandoffKeyNotFound):
	case err != nil:
		return domain.Session{}, err
	case strings.TrimSpace(user) != "":
		if !json.Valid([]byte(user)) {
			return domain.Session{}, fmt.Errorf("stored user is not valid JSON")
		}
		session.User = json.RawMessage(user)
	}
	return session, nil
}

// End removes the stored session.
func (s *Service) End(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// NewFileService constructs a service over the local config file.
func NewFileService() (*Service, error) {
	store, err := config.NewStore()
	if err != nil {
		return nil, err
	}
	return NewService(config.NewHandoffStore(store)), nil
}

// Field is one top-level value of the stored user record.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Summary is what the dashboard shows about a session.
type Summary struct {
	TokenPreview string     `json:"token_preview" yaml:"token_preview"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired      bool       `json:"expired" yaml:"expired"`
	User         []Field    `json:"user" yaml:"user"`
}

// Describe summarizes session at now.
func Describe(session domain.Session, now time.Time) Summary {
	summary := Summary{
		TokenPreview: TokenPreview(string(session.Token)),
		User:         UserFields(session.User),
	}
	if expiry, ok := TokenExpiry(string(session.Token)); ok {
		summary.ExpiresAt = &expiry
		summary.Expired = !now.Before(expiry)
	}
	return summary
}

// TokenPreview masks all but the edges of a token.
func TokenPreview(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:6] + "..." + token[len(token)-4:]
}

// TokenExpiry reads the exp claim of a JWT. Opaque tokens have no expiry.
func TokenExpiry(token string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	claimsRaw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp json.Number `json:"exp"`
	}
	if err := json.Unmarshal(claimsRaw, &claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.Exp.Float64()
	if err != nil || exp <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0).UTC(), true
}

// UserFields flattens the scalar top-level values of a user record,
// sorted by name. Nested values are rendered as compact JSON.
func UserFields(raw json.RawMessage) []Field {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil || len(record) == 0 {
		return []Field{}
	}
	fields := make([]Field, 0, len(record))
	for name, value := range record {
		fields = append(fields, Field{Name: name, Value: fieldText(value)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

func fieldText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
