package mapview

import (
	"github.com/mekedron/fieldmap-cli/internal/domain"
)

const missingPhone = "N/A"

// Popup is the content of the marker popup.
type Popup struct {
	Visible   bool              `json:"visible" yaml:"visible"`
	UserID    string            `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Name      string            `json:"name,omitempty" yaml:"name,omitempty"`
	Email     string            `json:"email,omitempty" yaml:"email,omitempty"`
	Phone     string            `json:"phone,omitempty" yaml:"phone,omitempty"`
	Latitude  string            `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude string            `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	Anchor    domain.Coordinate `json:"anchor" yaml:"anchor"`
}

func popupFor(p domain.MarkerPlacement) Popup {
	phone := p.User.PhoneNumber
	if phone == "" {
		phone = missingPhone
	}
	return Popup{
		Visible:   true,
		UserID:    p.User.ID,
		Name:      p.User.DisplayName,
		Email:     p.User.Email,
		Phone:     phone,
		Latitude:  p.User.Latitude.String(),
		Longitude: p.User.Longitude.String(),
		Anchor:    p.Position,
	}
}

// Lines renders the popup body.
func (p Popup) Lines() []string {
	if !p.Visible {
		return nil
	}
	return []string{
		p.Name,
		"Email: " + p.Email,
		"Phone: " + p.Phone,
		"Location: " + p.Latitude + ", " + p.Longitude,
	}
}

// ViewState is an immutable snapshot of the map screen.
type ViewState struct {
	Users      []domain.UserLocation    `json:"users" yaml:"users"`
	Markers    []domain.MarkerPlacement `json:"markers" yaml:"markers"`
	Popup      Popup                    `json:"popup" yaml:"popup"`
	Loading    bool                     `json:"loading" yaml:"loading"`
	LoadFailed bool                     `json:"load_failed" yaml:"load_failed"`
	Center     domain.Coordinate        `json:"center" yaml:"center"`
	Zoom       float64                  `json:"zoom" yaml:"zoom"`
}

func (v ViewState) loading() ViewState {
	v.Loading = true
	return v
}

func (v ViewState) loaded(users []domain.UserLocation, markers []domain.MarkerPlacement) ViewState {
	v.Users = users
	v.Markers = markers
	v.Loading = false
	v.LoadFailed = false
	return v
}

func (v ViewState) loadFailed() ViewState {
	v.Loading = false
	v.LoadFailed = true
	return v
}

func (v ViewState) withPopup(p Popup) ViewState {
	v.Popup = p
	return v
}

func (v ViewState) moved(center domain.Coordinate, zoom float64) ViewState {
	v.Center = center
	v.Zoom = zoom
	return v
}
