package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mekedron/fieldmap-cli/internal/config"
	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/gateway/api"
	"github.com/mekedron/fieldmap-cli/internal/service/session"
)

var testNow = time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

func newTestDeps(apiClient *testAPI, handoff *memoryHandoff) Dependencies {
	return Dependencies{
		API:      apiClient,
		Handoff:  handoff,
		Sessions: session.NewService(handoff),
		Clock:    immediateClock{now: testNow},
		Mode:     domain.ModeDevelopment,
		Version:  "test",
	}
}

func runCLI(t *testing.T, deps Dependencies, args ...string) (int, string, string) {
	t.Helper()
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Execute(context.Background(), args, deps, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func mustJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("failed to parse JSON output: %v\noutput: %s", err, raw)
	}
	return payload
}

func nairobiUsers() []domain.UserLocation {
	return []domain.UserLocation{
		{
			ID:          "1",
			DisplayName: "amina",
			Email:       "amina@example.com",
			PhoneNumber: "+254700000001",
			Latitude:    domain.CoordinateValue{Raw: "-1.2816714", Value: -1.2816714, Valid: true},
			Longitude:   domain.CoordinateValue{Raw: "36.8169419", Value: 36.8169419, Valid: true},
		},
		{
			ID:          "2",
			DisplayName: "brian",
			Email:       "brian@example.com",
			Latitude:    domain.NewCoordinateValue(-1.2816714),
			Longitude:   domain.NewCoordinateValue(36.8169419),
		},
		{
			ID:          "3",
			DisplayName: "chen",
			Email:       "chen@example.com",
			Latitude:    domain.NewCoordinateValue(-1.29),
		},
	}
}

func TestLoginSuccessRendersDashboard(t *testing.T) {
	apiClient := &testAPI{loginFn: func(context.Context, domain.Credentials) (api.LoginResult, error) {
		return api.LoginResult{Token: "tok-abcdef-123456", User: []byte(`{"username":"amina"}`)}, nil
	}}
	handoff := &memoryHandoff{}

	code, stdout, stderr := runCLI(t, newTestDeps(apiClient, handoff), "login", "--email", "amina@example.com", "--password", "s3cret")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stderr, "Login successful! Redirecting to dashboard...") {
		t.Fatalf("expected success notification, got %q", stderr)
	}
	if !strings.Contains(stdout, "Dashboard") || !strings.Contains(stdout, "tok-ab...3456") || !strings.Contains(stdout, "amina") {
		t.Fatalf("expected dashboard output, got:\n%s", stdout)
	}
	if len(handoff.writes) != 2 || handoff.writes[0] != "token" || handoff.writes[1] != "user" {
		t.Fatalf("expected token then user handoff writes, got %v", handoff.writes)
	}
	if apiClient.logins[0].Password != "s3cret" {
		t.Fatalf("expected password forwarded, got %+v", apiClient.logins[0])
	}
}

func TestLoginJSONEnvelope(t *testing.T) {
	apiClient := &testAPI{loginFn: func(context.Context, domain.Credentials) (api.LoginResult, error) {
		return api.LoginResult{Token: "tok-abcdef-123456", User: []byte(`{}`)}, nil
	}}
	code, stdout, _ := runCLI(t, newTestDeps(apiClient, &memoryHandoff{}), "login", "--email", "a@b.c", "--password", "x", "--format", "json")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout)
	}
	payload := mustJSON(t, stdout)
	meta, _ := payload["meta"].(map[string]any)
	if meta["mode"] != "development" {
		t.Fatalf("expected development mode, got %v", meta["mode"])
	}
	data, _ := payload["data"].(map[string]any)
	if data["screen"] != "dashboard" {
		t.Fatalf("expected dashboard screen, got %v", data["screen"])
	}
	notification, _ := data["notification"].(map[string]any)
	if notification["severity"] != "success" {
		t.Fatalf("expected success notification, got %v", data["notification"])
	}
}

func TestLoginRejectedShowsServerMessage(t *testing.T) {
	apiClient := &testAPI{loginFn: func(context.Context, domain.Credentials) (api.LoginResult, error) {
		return api.LoginResult{}, &api.UpstreamRequestError{StatusCode: http.StatusUnauthorized, Message: "Invalid password"}
	}}
	handoff := &memoryHandoff{}

	code, stdout, _ := runCLI(t, newTestDeps(apiClient, handoff), "login", "--email", "amina@example.com", "--password", "wrong")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stdout, "Invalid password") {
		t.Fatalf("expected server message, got %q", stdout)
	}
	if len(handoff.writes) != 0 {
		t.Fatalf("expected no handoff writes, got %v", handoff.writes)
	}
}

func TestLoginTransportFailureUsesGenericMessage(t *testing.T) {
	apiClient := &testAPI{loginFn: func(context.Context, domain.Credentials) (api.LoginResult, error) {
		return api.LoginResult{}, &api.UpstreamRequestError{Cause: errors.New("connection refused")}
	}}
	code, stdout, _ := runCLI(t, newTestDeps(apiClient, &memoryHandoff{}), "login", "--email", "a@b.c", "--password", "x", "--format", "json")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	payload := mustJSON(t, stdout)
	errPayload, _ := payload["error"].(map[string]any)
	if errPayload["code"] != "FIELDMAP_LOGIN_FAILED" || errPayload["message"] != "An error occurred during login" {
		t.Fatalf("unexpected error payload %v", errPayload)
	}
}

func TestLoginRequiresEmailAndPassword(t *testing.T) {
	t.Setenv(passwordEnv, "")
	deps := newTestDeps(&testAPI{}, &memoryHandoff{})

	code, stdout, _ := runCLI(t, deps, "login", "--password", "x")
	if code != 1 || !strings.Contains(stdout, "--email is required") {
		t.Fatalf("expected email validation, got %d %q", code, stdout)
	}
	code, stdout, _ = runCLI(t, deps, "login", "--email", "a@b.c")
	if code != 1 || !strings.Contains(stdout, "--password is required") {
		t.Fatalf("expected password validation, got %d %q", code, stdout)
	}
}

func TestLoginPasswordFromEnv(t *testing.T) {
	t.Setenv(passwordEnv, "from-env")
	apiClient := &testAPI{loginFn: func(context.Context, domain.Credentials) (api.LoginResult, error) {
		return api.LoginResult{Token: "tok", User: []byte(`{}`)}, nil
	}}
	code, _, _ := runCLI(t, newTestDeps(apiClient, &memoryHandoff{}), "login", "--email", "a@b.c")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if apiClient.logins[0].Password != "from-env" {
		t.Fatalf("expected env password, got %+v", apiClient.logins[0])
	}
}

func TestDashboardWithoutSession(t *testing.T) {
	code, stdout, _ := runCLI(t, newTestDeps(&testAPI{}, &memoryHandoff{}), "dashboard", "--format", "json")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	errPayload, _ := mustJSON(t, stdout)["error"].(map[string]any)
	if errPayload["code"] != "FIELDMAP_NO_SESSION" {
		t.Fatalf("unexpected error payload %v", errPayload)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	handoff := &memoryHandoff{values: map[string]string{"token": "tok", "user": "{}"}}
	deps := newTestDeps(&testAPI{}, handoff)

	if code, _, _ := runCLI(t, deps, "dashboard"); code != 0 {
		t.Fatalf("expected dashboard to find the session, got %d", code)
	}
	code, stdout, _ := runCLI(t, deps, "logout")
	if code != 0 || !strings.Contains(stdout, "Signed out.") {
		t.Fatalf("unexpected logout result %d %q", code, stdout)
	}
	if code, _, _ := runCLI(t, deps, "dashboard"); code != 1 {
		t.Fatalf("expected no session after logout, got %d", code)
	}
}

func TestUsersTableShowsOffsetsAndMissingCoordinates(t *testing.T) {
	apiClient := &testAPI{usersFn: func(context.Context) ([]domain.UserLocation, error) {
		return nairobiUsers(), nil
	}}
	code, stdout, _ := runCLI(t, newTestDeps(apiClient, &memoryHandoff{}), "users")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout)
	}
	lines := strings.Split(stdout, "\n")
	if len(lines) < 5 {
		t.Fatalf("unexpected users table:\n%s", stdout)
	}
	if !strings.Contains(lines[2], "-1.2816714\t36.8169419\t-1.2816714\t36.8169419") {
		t.Fatalf("expected first user unshifted, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "N/A") || !strings.Contains(lines[3], "-1.2815714") {
		t.Fatalf("expected second user shifted by one step, got %q", lines[3])
	}
	if !strings.HasSuffix(lines[4], "-\t-\t-") {
		t.Fatalf("expected third user without marker, got %q", lines[4])
	}
}

func TestUsersUpstreamError(t *testing.T) {
	apiClient := &testAPI{usersFn: func(context.Context) ([]domain.UserLocation, error) {
		return nil, &api.UpstreamRequestError{StatusCode: 500}
	}}
	code, stdout, _ := runCLI(t, newTestDeps(apiClient, &memoryHandoff{}), "users")
	if code != 1 || !strings.Contains(stdout, "status 500") {
		t.Fatalf("unexpected result %d %q", code, stdout)
	}
}

func TestMapClickShowsPopup(t *testing.T) {
	apiClient := &testAPI{usersFn: func(context.Context) ([]domain.UserLocation, error) {
		return nairobiUsers()[:1], nil
	}}
	code, stdout, _ := runCLI(t, newTestDeps(apiClient, &memoryHandoff{}),
		"map", "--click-lat", "-1.2816714", "--click-lon", "36.8169419", "--tiles")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout)
	}
	for _, want := range []string{"Markers\t1", "Popup", "amina", "Phone: +254700000001", "Location: -1.2816714, 36.8169419", "https://tile.openstreetmap.org/12/"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestMapLoadFailureStillRenders(t *testing.T) {
	apiClient := &testAPI{usersFn: func(context.Context) ([]domain.UserLocation, error) {
		return nil, errors.New("connection refused")
	}}
	code, stdout, _ := runCLI(t, newTestDeps(apiClient, &memoryHandoff{}), "map", "--format", "json")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout)
	}
	payload := mustJSON(t, stdout)
	warnings, _ := payload["warnings"].([]any)
	if len(warnings) != 1 {
		t.Fatalf("expected load warning, got %v", payload["warnings"])
	}
}

func TestMapNearRecentersOnPlace(t *testing.T) {
	apiClient := &testAPI{usersFn: func(context.Context) ([]domain.UserLocation, error) {
		return nairobiUsers()[:1], nil
	}}
	geocoder := &testGeocoder{places: map[string]domain.Coordinate{"Mombasa": {Lat: -4.0434771, Lon: 39.6682065}}}
	deps := newTestDeps(apiClient, &memoryHandoff{})
	deps.Geocoder = geocoder

	code, stdout, _ := runCLI(t, deps, "map", "--near", "Mombasa")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "-4.0434771, 39.6682065") {
		t.Fatalf("expected recentered view, got:\n%s", stdout)
	}

	code, stdout, _ = runCLI(t, deps, "map", "--near", "Atlantis", "--format", "json")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	errPayload, _ := mustJSON(t, stdout)["error"].(map[string]any)
	if errPayload["code"] != "FIELDMAP_GEOCODE_FAILED" {
		t.Fatalf("unexpected error payload %v", errPayload)
	}
}

func TestMapRejectsHalfClickCoordinate(t *testing.T) {
	code, stdout, _ := runCLI(t, newTestDeps(&testAPI{}, &memoryHandoff{}), "map", "--click-lat", "1")
	if code != 1 || !strings.Contains(stdout, "--click-lon") {
		t.Fatalf("unexpected result %d %q", code, stdout)
	}
}

func TestMapInteractiveRendersStates(t *testing.T) {
	apiClient := &testAPI{usersFn: func(context.Context) ([]domain.UserLocation, error) {
		return nairobiUsers()[:1], nil
	}}
	deps := newTestDeps(apiClient, &memoryHandoff{})
	deps.Stdin = strings.NewReader("at -1.2816714 36.8169419\nbogus\nquit\n")

	code, stdout, stderr := runCLI(t, deps, "map", "--interactive")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "markers=1") || !strings.Contains(stdout, `popup="amina`) {
		t.Fatalf("expected rendered popup state, got:\n%s", stdout)
	}
	if !strings.Contains(stderr, `unknown map command "bogus"`) {
		t.Fatalf("expected unknown command message, got %q", stderr)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestMapInteractiveStopsWhenOutputFails(t *testing.T) {
	apiClient := &testAPI{usersFn: func(context.Context) ([]domain.UserLocation, error) {
		return nairobiUsers()[:1], nil
	}}
	deps := newTestDeps(apiClient, &memoryHandoff{})
	stdin, stdinWriter := io.Pipe()
	t.Cleanup(func() { _ = stdinWriter.Close() })
	deps.Stdin = stdin

	done := make(chan int, 1)
	go func() {
		var stderr bytes.Buffer
		done <- Execute(context.Background(), []string{"map", "--interactive"}, deps, failingWriter{}, &stderr)
	}()

	select {
	case code := <-done:
		if code != 1 {
			t.Fatalf("expected exit 1 on output failure, got %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("interactive map kept waiting for stdin after its output failed")
	}
}

func TestMapInteractiveYAMLDocuments(t *testing.T) {
	apiClient := &testAPI{usersFn: func(context.Context) ([]domain.UserLocation, error) {
		return nairobiUsers()[:1], nil
	}}
	deps := newTestDeps(apiClient, &memoryHandoff{})
	deps.Stdin = strings.NewReader("zoom 1\nquit\n")

	code, stdout, stderr := runCLI(t, deps, "map", "--interactive", "--format", "yaml")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.HasPrefix(stdout, "---\n") || !strings.Contains(stdout, "load_failed: false") {
		t.Fatalf("expected YAML documents, got:\n%s", stdout)
	}
	if strings.Contains(stdout, "{\"") {
		t.Fatalf("expected no JSON lines in YAML mode, got:\n%s", stdout)
	}
}

func TestOpenDispatchesByPath(t *testing.T) {
	handoff := &memoryHandoff{values: map[string]string{"token": "tok-abcdef-123456", "user": `{"username":"amina"}`}}
	deps := newTestDeps(&testAPI{}, handoff)

	code, stdout, _ := runCLI(t, deps, "open", "/dashboard", "--format", "json")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout)
	}
	data, _ := mustJSON(t, stdout)["data"].(map[string]any)
	if data["screen"] != "dashboard" {
		t.Fatalf("expected dashboard screen, got %v", data)
	}
}

func TestOpenUnknownAndUnavailableRoutes(t *testing.T) {
	deps := newTestDeps(&testAPI{}, &memoryHandoff{})

	code, stdout, _ := runCLI(t, deps, "open", "/register")
	if code != 1 || !strings.Contains(stdout, "not available") {
		t.Fatalf("expected unavailable register screen, got %d %q", code, stdout)
	}
	code, stdout, _ = runCLI(t, deps, "open", "/settings", "--format", "json")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	errPayload, _ := mustJSON(t, stdout)["error"].(map[string]any)
	if errPayload["code"] != "FIELDMAP_NO_ROUTE" {
		t.Fatalf("unexpected error payload %v", errPayload)
	}
}

func TestConfigurePersistsMode(t *testing.T) {
	store := config.NewStoreAt(filepath.Join(t.TempDir(), "config.json"))
	deps := newTestDeps(&testAPI{}, &memoryHandoff{})
	deps.Config = store

	code, stdout, stderr := runCLI(t, deps, "configure", "--mode", "prod", "--origin", "http://localhost:8080/")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s%s", code, stdout, stderr)
	}
	cfg, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Mode != domain.ModeProduction || cfg.Origin != "http://localhost:8080" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	code, _, stderr = runCLI(t, deps, "configure", "--mode", "staging")
	if code != 1 || !strings.Contains(stderr, "unsupported mode") {
		t.Fatalf("expected invalid mode error, got %d %q", code, stderr)
	}
}

func TestUnknownCommandExitCode(t *testing.T) {
	code, _, stderr := runCLI(t, Dependencies{}, "checkout")
	if code != 2 || !strings.Contains(stderr, "No such command 'checkout'") {
		t.Fatalf("unexpected result %d %q", code, stderr)
	}
}

func TestVersionFlag(t *testing.T) {
	code, stdout, _ := runCLI(t, Dependencies{Version: "v1.2.3"}, "--version")
	if code != 0 || strings.TrimSpace(stdout) != "v1.2.3 (development build)" {
		t.Fatalf("unexpected version output %d %q", code, stdout)
	}
}
