package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mekedron/fieldmap-cli/internal/cli"
	"github.com/mekedron/fieldmap-cli/internal/config"
	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/gateway/api"
	"github.com/mekedron/fieldmap-cli/internal/gateway/geocode"
	"github.com/mekedron/fieldmap-cli/internal/router"
	"github.com/mekedron/fieldmap-cli/internal/screen/clock"
	"github.com/mekedron/fieldmap-cli/internal/service/session"
)

var (
	version = "dev"
	// mode is the build mode, set with -ldflags "-X main.mode=production".
	mode = "development"
)

const (
	defaultHTTPTimeout = 20 * time.Second
	httpTimeoutEnv     = "FIELDMAP_HTTP_TIMEOUT_MS"
	modeEnv            = "FIELDMAP_MODE"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := config.NewStore()
	if err != nil {
		logger.Error("failed to resolve config path", "error", err)
		return 1
	}
	cfg, err := store.LoadOrDefault(ctx)
	if err != nil && !errors.Is(err, config.ErrInvalidConfig) {
		logger.Error("failed to load config", "path", store.Path(), "error", err)
		return 1
	}
	if err != nil {
		logger.Warn("ignoring unreadable config", "path", store.Path(), "error", err)
		cfg = domain.Config{}
	}

	apiMode, err := resolveMode(cfg)
	if err != nil {
		logger.Error("invalid mode", "error", err)
		return 1
	}
	baseURL := api.BaseURL(apiMode, cfg.Origin)
	logger.Debug("api configured", "mode", apiMode, "base_url", baseURL)

	handoff := config.NewHandoffStore(store)
	deps := cli.Dependencies{
		API: api.NewClient(
			api.WithTimeout(resolveHTTPTimeout()),
			api.WithBaseURL(baseURL),
		),
		Geocoder: geocode.NewClient(geocode.WithTimeout(resolveHTTPTimeout())),
		Handoff:  handoff,
		Sessions: session.NewService(handoff),
		Config:   store,
		Router:   router.New(),
		Logger:   logger,
		LogLevel: level,
		Clock:    clock.Real(),
		Stdin:    os.Stdin,
		Password: cli.TerminalPasswordPrompt(os.Stdin),
		Mode:     apiMode,
		Version:  version,
	}

	return cli.Execute(ctx, os.Args[1:], deps, os.Stdout, os.Stderr)
}

// resolveMode prefers FIELDMAP_MODE, then the configured mode, then the
// build mode.
func resolveMode(cfg domain.Config) (domain.Mode, error) {
	if raw := strings.TrimSpace(os.Getenv(modeEnv)); raw != "" {
		return domain.ParseMode(raw)
	}
	if cfg.Mode != "" {
		return domain.ParseMode(string(cfg.Mode))
	}
	return domain.ParseMode(mode)
}

func resolveHTTPTimeout() time.Duration {
	raw := strings.TrimSpace(os.Getenv(httpTimeoutEnv))
	if raw == "" {
		return defaultHTTPTimeout
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return defaultHTTPTimeout
	}
	return time.Duration(ms) * time.Millisecond
}
