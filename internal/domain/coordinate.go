package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coordinate identifies a point on earth in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Offset returns the coordinate shifted by delta on both axes.
func (c Coordinate) Offset(delta float64) Coordinate {
	return Coordinate{Lat: c.Lat + delta, Lon: c.Lon + delta}
}

// CoordinateValue is a latitude or longitude as delivered by the users API.
// The API sends strings or numbers; anything that does not parse is kept
// as raw text and reported as not valid.
type CoordinateValue struct {
	Raw   string
	Value float64
	Valid bool
}

// NewCoordinateValue builds a valid coordinate value from a number.
func NewCoordinateValue(value float64) CoordinateValue {
	return CoordinateValue{
		Raw:   strconv.FormatFloat(value, 'f', -1, 64),
		Value: value,
		Valid: true,
	}
}

func (c *CoordinateValue) UnmarshalJSON(data []byte) error {
	*c = CoordinateValue{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Raw = text
		value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil || !finite(value) {
			return nil
		}
		c.Value = value
		c.Valid = true
		return nil
	}

	var value float64
	if err := json.Unmarshal(data, &value); err == nil {
		c.Raw = string(data)
		if !finite(value) {
			return nil
		}
		c.Value = value
		c.Valid = true
		return nil
	}

	c.Raw = string(data)
	return nil
}

// finite rejects NaN and the infinities, which ParseFloat accepts by name.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c CoordinateValue) MarshalJSON() ([]byte, error) {
	if c.Valid {
		return json.Marshal(c.Value)
	}
	if c.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(c.Raw)
}

func (c CoordinateValue) MarshalYAML() (any, error) {
	if c.Valid {
		return c.Value, nil
	}
	if c.Raw == "" {
		return nil, nil
	}
	return c.Raw, nil
}

// String returns the coordinate as the API sent it.
func (c CoordinateValue) String() string {
	return c.Raw
}
