package api

import (
	"context"
	"encoding/json"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

// API describes the upstream operations used by the screens.
type API interface {
	Login(ctx context.Context, credentials domain.Credentials) (LoginResult, error)
	Users(ctx context.Context) ([]domain.UserLocation, error)
}

// LoginResult is the successful login payload. The token is opaque.
type LoginResult struct {
	Token domain.Token
	User  json.RawMessage
}
