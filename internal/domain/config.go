package domain

import (
	"fmt"
	"strings"
)

// Mode selects which API host the client talks to.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Config stores local client settings and the session handoff.
type Config struct {
	Mode    Mode              `json:"mode,omitempty"`
	Origin  string            `json:"origin,omitempty"`
	Handoff map[string]string `json:"handoff,omitempty"`
}

// ParseMode validates mode values. An empty value selects development.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeDevelopment, "dev":
		return ModeDevelopment, nil
	case ModeProduction, "prod":
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("unsupported mode %q", raw)
	}
}
