package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/gateway/api"
	"github.com/mekedron/fieldmap-cli/internal/router"
	"github.com/mekedron/fieldmap-cli/internal/screen/clock"
)

var unknownCommandPattern = regexp.MustCompile(`unknown command "([^"]+)"`)

// HandoffStore keeps the values the login screen leaves for the next screen.
type HandoffStore interface {
	Set(ctx context.Context, key, value string) error
}

// SessionReader resolves and ends the stored session.
type SessionReader interface {
	Current(ctx context.Context) (domain.Session, error)
	End(ctx context.Context) error
}

// ConfigManager stores local settings.
type ConfigManager interface {
	Path() string
	Load(ctx context.Context) (domain.Config, error)
	Save(ctx context.Context, cfg domain.Config) error
}

// Geocoder resolves place names for recentering the map.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (domain.Coordinate, error)
}

// PasswordPrompt asks for a password without echoing it.
type PasswordPrompt func(prompt string, out io.Writer) (string, error)

// Dependencies wires runtime services.
type Dependencies struct {
	API      api.API
	Geocoder Geocoder
	Handoff  HandoffStore
	Sessions SessionReader
	Config   ConfigManager
	Router   *router.Router
	Logger   *slog.Logger
	// LogLevel is raised to debug by --verbose when set.
	LogLevel *slog.LevelVar
	Clock    clock.Clock
	Stdin    io.Reader
	Password PasswordPrompt
	Mode     domain.Mode
	Version  string
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Router == nil {
		d.Router = router.New()
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Mode == "" {
		d.Mode = domain.ModeDevelopment
	}
	return d
}

var errVersionShown = fmt.Errorf("version shown")

// Execute runs the CLI with injected dependencies.
func Execute(ctx context.Context, args []string, deps Dependencies, stdout io.Writer, stderr io.Writer) int {
	cmd := NewRootCommand(deps)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil || err == errVersionShown {
		return 0
	}
	var controlled *exitError
	if errors.As(err, &controlled) {
		return controlled.code
	}

	if matches := unknownCommandPattern.FindStringSubmatch(err.Error()); len(matches) > 1 {
		_, _ = fmt.Fprintf(stderr, "No such command '%s'\n", matches[1])
		return 2
	}

	if msg := err.Error(); msg != "" {
		_, _ = fmt.Fprintln(stderr, msg)
	}
	return 1
}
