package domain

// MarkerPlacement pairs a user with the coordinate its marker is drawn at.
// Position differs from the user's own coordinate only when several users
// share the exact same point.
type MarkerPlacement struct {
	User       UserLocation `json:"user" yaml:"user"`
	Position   Coordinate   `json:"position" yaml:"position"`
	Occurrence int          `json:"occurrence" yaml:"occurrence"`
}
