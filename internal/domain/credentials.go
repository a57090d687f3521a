package domain

import "log/slog"

// SecretMarker replaces secret values in logs.
const SecretMarker = "[REDACTED]"

// Credentials is the login form payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LogValue implements the slog.LogValuer interface.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", c.Email),
		slog.String("password", SecretMarker),
	)
}

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is the transient banner shown after a submit attempt.
type Notification struct {
	Visible  bool     `json:"visible"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
