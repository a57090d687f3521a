// Package login holds the sign-in screen: form state, a single in-flight
// submission, the notification banner and the delayed hand-off to the
// dashboard.
package login

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/gateway/api"
	"github.com/mekedron/fieldmap-cli/internal/screen/clock"
	"github.com/mekedron/fieldmap-cli/internal/screen/observe"
)

const (
	// RedirectDelay keeps the success notification on screen before navigating.
	RedirectDelay = 2 * time.Second
	// NotificationTimeout hides a notification nobody dismissed.
	NotificationTimeout = 6 * time.Second
	// DashboardPath is where a successful login navigates to.
	DashboardPath = "/dashboard"

	SuccessMessage          = "Login successful! Redirecting to dashboard..."
	RejectedFallbackMessage = "Login failed"
	GenericErrorMessage     = "An error occurred during login"
)

var (
	// ErrSubmissionInFlight is returned when Submit is called while another submission runs.
	ErrSubmissionInFlight = errors.New("login submission already in flight")
	// ErrAlreadySignedIn is returned by Submit once a login succeeded and
	// the redirect is pending or done.
	ErrAlreadySignedIn = errors.New("login already succeeded")
	// ErrUnmounted is returned by operations on an unmounted screen.
	ErrUnmounted = errors.New("login screen is unmounted")
	// ErrUnknownField is returned by SetField for names other than email and password.
	ErrUnknownField = errors.New("unknown form field")
)

// Authenticator submits credentials to the authentication endpoint.
type Authenticator interface {
	Login(ctx context.Context, credentials domain.Credentials) (api.LoginResult, error)
}

// Storage receives the session handoff for the next screen.
type Storage interface {
	Set(ctx context.Context, key, value string) error
}

// Navigator moves to another screen, passing the session along.
type Navigator interface {
	Navigate(path string, session domain.Session)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string, session domain.Session)

func (f NavigatorFunc) Navigate(path string, session domain.Session) {
	f(path, session)
}

// Deps are the screen's collaborators.
type Deps struct {
	Auth      Authenticator
	Storage   Storage
	Navigator Navigator
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Status is the result of one submission.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome describes a finished submission.
type Outcome struct {
	Status       Status
	Notification domain.Notification
	Session      *domain.Session
	Err          error
}

// Screen is one mounted login screen.
type Screen struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	states *observe.Broadcaster[ViewState]

	mu            sync.Mutex
	credentials   domain.Credentials
	state         ViewState
	inFlight      bool
	mounted       bool
	noticeGen     uint64
	hideTimer     clock.Timer
	redirectTimer clock.Timer
}

// Mount creates a screen with empty credentials and a hidden notification.
func Mount(deps Deps) *Screen {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Screen{
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
		states:  observe.NewBroadcaster[ViewState](),
		state:   ViewState{Notification: domain.Notification{Severity: domain.SeveritySuccess}},
		mounted: true,
	}
	s.states.Publish(s.state)
	return s
}

// Subscribe streams view states; the func stops the stream.
func (s *Screen) Subscribe() (<-chan ViewState, func()) {
	return s.states.Subscribe()
}

// State returns the current view state.
func (s *Screen) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetField overwrites one credential field.
func (s *Screen) SetField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrUnmounted
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FieldEmail:
		s.credentials.Email = value
	case FieldPassword:
		s.credentials.Password = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	s.setState(s.state.withCredentials(s.credentials))
	return nil
}

// Submit sends the current credentials. Only one submission runs at a
// time; a call made while one is in flight returns ErrSubmissionInFlight
// without touching the network. Failures are reported through the
// returned Outcome and the notification, never as the error result.
func (s *Screen) Submit(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return Outcome{}, ErrUnmounted
	}
	if s.inFlight {
		s.mu.Unlock()
		return Outcome{}, ErrSubmissionInFlight
	}
	if s.state.Redirecting || s.state.Destination != "" {
		s.mu.Unlock()
		return Outcome{}, ErrAlreadySignedIn
	}
	s.inFlight = true
	credentials := s.credentials
	s.setState(s.state.submitting())
	s.mu.Unlock()

	defer s.settle()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.deps.Logger.Debug("submitting login", "credentials", credentials)
	result, err := s.deps.Auth.Login(reqCtx, credentials)
	if !s.isMounted() {
		return Outcome{}, ErrUnmounted
	}
	if err != nil {
		return s.fail(err), nil
	}

	session := domain.Session{
		Token:    result.Token,
		User:     compactJSON(result.User),
		IssuedAt: s.deps.Clock.Now(),
	}
	if err := s.handoff(reqCtx, session); err != nil {
		if errors.Is(err, ErrUnmounted) {
			return Outcome{}, err
		}
		return s.fail(err), nil
	}
	return s.succeed(session), nil
}

// handoff writes the token, then the user. Nothing is written once the
// screen is unmounted.
func (s *Screen) handoff(ctx context.Context, session domain.Session) error {
	if s.deps.Storage == nil {
		return nil
	}
	writes := []struct{ key, value string }{
		{domain.HandoffTokenKey, string(session.Token)},
		{domain.HandoffUserKey, string(session.User)},
	}
	for _, w := range writes {
		if !s.isMounted() {
			return ErrUnmounted
		}
		if err := s.deps.Storage.Set(ctx, w.key, w.value); err != nil {
			return fmt.Errorf("store %s: %w", w.key, err)
		}
	}
	return nil
}

func (s *Screen) succeed(session domain.Session) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return Outcome{Status: StatusSucceeded, Session: &session}
	}
	s.deps.Logger.Info("login succeeded", "token", session.Token)
	s.notify(domain.SeveritySuccess, SuccessMessage)
	s.setState(s.state.redirecting())
	if s.redirectTimer != nil {
		s.redirectTimer.Stop()
	}
	s.redirectTimer = s.deps.Clock.AfterFunc(RedirectDelay, func() {
		s.navigate(session)
	})
	return Outcome{Status: StatusSucceeded, Notification: s.state.Notification, Session: &session}
}

func (s *Screen) fail(err error) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := FailureMessage(err)
	s.deps.Logger.Warn("login failed", "error", err)
	if s.mounted {
		s.notify(domain.SeverityError, message)
	}
	return Outcome{
		Status:       StatusFailed,
		Notification: domain.Notification{Visible: true, Message: message, Severity: domain.SeverityError},
		Err:          err,
	}
}

// FailureMessage maps a submission error to the text shown to the user:
// the server's message when it sent one, a rejection fallback for error
// statuses without a message, and a generic text for everything else.
func FailureMessage(err error) string {
	var upstreamErr *api.UpstreamRequestError
	if errors.As(err, &upstreamErr) && upstreamErr.Rejected() {
		if message := upstreamErr.UserMessage(); message != "" {
			return message
		}
		return RejectedFallbackMessage
	}
	return GenericErrorMessage
}

// settle clears the in-flight flag on every exit path of Submit.
func (s *Screen) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if s.mounted {
		s.setState(s.state.settled())
	}
}

func (s *Screen) navigate(session domain.Session) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.redirectTimer = nil
	s.credentials = domain.Credentials{}
	s.setState(s.state.navigated(DashboardPath))
	s.mu.Unlock()

	if s.deps.Navigator != nil {
		s.deps.Navigator.Navigate(DashboardPath, session)
	}
}

// notify must be called with s.mu held.
func (s *Screen) notify(severity domain.Severity, message string) {
	if s.hideTimer != nil {
		s.hideTimer.Stop()
	}
	s.noticeGen++
	gen := s.noticeGen
	s.setState(s.state.notified(severity, message))
	s.hideTimer = s.deps.Clock.AfterFunc(NotificationTimeout, func() {
		s.autoHide(gen)
	})
}

func (s *Screen) autoHide(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted || gen != s.noticeGen {
		return
	}
	s.hideTimer = nil
	s.setState(s.state.dismissed())
}

// Dismiss hides the notification.
func (s *Screen) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	if s.hideTimer != nil {
		s.hideTimer.Stop()
		s.hideTimer = nil
	}
	s.setState(s.state.dismissed())
}

// Unmount tears the screen down: the in-flight request is cancelled,
// pending timers are stopped and subscriptions are closed. A response
// arriving afterwards is dropped. Safe to call more than once.
func (s *Screen) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	s.credentials = domain.Credentials{}
	for _, t := range []clock.Timer{s.hideTimer, s.redirectTimer} {
		if t != nil {
			t.Stop()
		}
	}
	s.hideTimer = nil
	s.redirectTimer = nil
	s.mu.Unlock()

	s.cancel()
	s.states.Close()
}

func (s *Screen) isMounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// setState must be called with s.mu held.
func (s *Screen) setState(next ViewState) {
	s.state = next
	s.states.Publish(next)
}

func compactJSON(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
