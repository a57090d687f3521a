package domain

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Token is an opaque session token issued by the API.
type Token string

// LogValue implements the slog.LogValuer interface.
func (t Token) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}

// Session is handed from the login screen to the screen it navigates to.
// The token is never interpreted by this client.
type Session struct {
	Token    Token           `json:"token"`
	User     json.RawMessage `json:"user"`
	IssuedAt time.Time       `json:"issued_at"`
}

// Handoff keys written after a successful login.
const (
	HandoffTokenKey = "token"
	HandoffUserKey  = "user"
)
