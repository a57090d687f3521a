package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// UserLocation is one user record returned by the users endpoint.
type UserLocation struct {
	ID          string          `json:"id" yaml:"id"`
	DisplayName string          `json:"username" yaml:"username"`
	Email       string          `json:"email" yaml:"email"`
	PhoneNumber string          `json:"phoneNumber,omitempty" yaml:"phoneNumber,omitempty"`
	Latitude    CoordinateValue `json:"latitude" yaml:"latitude"`
	Longitude   CoordinateValue `json:"longitude" yaml:"longitude"`
}

// HasCoordinate reports whether both latitude and longitude are usable.
func (u UserLocation) HasCoordinate() bool {
	return u.Latitude.Valid && u.Longitude.Valid
}

// Coordinate returns the user's position as reported by the API.
func (u UserLocation) Coordinate() Coordinate {
	return Coordinate{Lat: u.Latitude.Value, Lon: u.Longitude.Value}
}

func (u *UserLocation) UnmarshalJSON(data []byte) error {
	var payload struct {
		MongoID     json.RawMessage `json:"_id"`
		ID          json.RawMessage `json:"id"`
		Username    json.RawMessage `json:"username"`
		Name        json.RawMessage `json:"name"`
		Email       json.RawMessage `json:"email"`
		PhoneNumber json.RawMessage `json:"phoneNumber"`
		Latitude    CoordinateValue `json:"latitude"`
		Longitude   CoordinateValue `json:"longitude"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*u = UserLocation{
		ID:          firstNonEmpty(rawText(payload.MongoID), rawText(payload.ID)),
		DisplayName: firstNonEmpty(rawText(payload.Username), rawText(payload.Name)),
		Email:       rawText(payload.Email),
		PhoneNumber: rawText(payload.PhoneNumber),
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
	}
	return nil
}

func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
