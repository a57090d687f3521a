package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

// ErrHandoffKeyNotFound is returned when a handoff key has no value.
var ErrHandoffKeyNotFound = errors.New("handoff key not found")

// HandoffStore keeps the string values one screen leaves for the next
// inside the config file. Every Set is one file write.
type HandoffStore struct {
	store *Store
	mu    sync.Mutex
}

// NewHandoffStore wraps a config store.
func NewHandoffStore(store *Store) *HandoffStore {
	return &HandoffStore{store: store}
}

// Set writes one key.
func (h *HandoffStore) Set(ctx context.Context, key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := h.store.LoadOrDefault(ctx)
	if err != nil {
		return err
	}
	if cfg.Handoff == nil {
		cfg.Handoff = map[string]string{}
	}
	cfg.Handoff[strings.TrimSpace(key)] = value
	return h.store.Save(ctx, cfg)
}

// Get reads one key.
func (h *HandoffStore) Get(ctx context.Context, key string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := h.store.LoadOrDefault(ctx)
	if err != nil {
		return "", err
	}
	value, ok := cfg.Handoff[strings.TrimSpace(key)]
	if !ok {
		return "", ErrHandoffKeyNotFound
	}
	return value, nil
}

// Clear removes the session handoff keys.
func (h *HandoffStore) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := h.store.LoadOrDefault(ctx)
	if err != nil {
		return err
	}
	if len(cfg.Handoff) == 0 {
		return nil
	}
	delete(cfg.Handoff, domain.HandoffTokenKey)
	delete(cfg.Handoff, domain.HandoffUserKey)
	return h.store.Save(ctx, cfg)
}
