package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mekedron/fieldmap-cli/internal/config"
	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/gateway/api"
	"github.com/mekedron/fieldmap-cli/internal/screen/clock"
)

type testAPI struct {
	mu      sync.Mutex
	loginFn func(context.Context, domain.Credentials) (api.LoginResult, error)
	usersFn func(context.Context) ([]domain.UserLocation, error)
	logins  []domain.Credentials
}

func (m *testAPI) Login(ctx context.Context, credentials domain.Credentials) (api.LoginResult, error) {
	m.mu.Lock()
	m.logins = append(m.logins, credentials)
	m.mu.Unlock()
	if m.loginFn != nil {
		return m.loginFn(ctx, credentials)
	}
	return api.LoginResult{}, nil
}

func (m *testAPI) Users(ctx context.Context) ([]domain.UserLocation, error) {
	if m.usersFn != nil {
		return m.usersFn(ctx)
	}
	return nil, nil
}

type testGeocoder struct {
	places map[string]domain.Coordinate
	seen   []string
}

func (g *testGeocoder) Lookup(_ context.Context, query string) (domain.Coordinate, error) {
	g.seen = append(g.seen, query)
	at, ok := g.places[query]
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("no location matches %q", query)
	}
	return at, nil
}

type memoryHandoff struct {
	mu     sync.Mutex
	values map[string]string
	writes []string
}

func (m *memoryHandoff) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	m.writes = append(m.writes, key)
	return nil
}

func (m *memoryHandoff) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", config.ErrHandoffKeyNotFound
	}
	return value, nil
}

func (m *memoryHandoff) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{}
	return nil
}

// immediateClock fires every timer right away on its own goroutine.
type immediateClock struct {
	now time.Time
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func (c immediateClock) Now() time.Time {
	return c.now
}

func (c immediateClock) AfterFunc(_ time.Duration, f func()) clock.Timer {
	go f()
	return noopTimer{}
}
