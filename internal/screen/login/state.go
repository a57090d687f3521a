package login

import "github.com/mekedron/fieldmap-cli/internal/domain"

// Form field names accepted by SetField.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// ViewState is an immutable snapshot of the login screen.
type ViewState struct {
	Email        string              `json:"email"`
	PasswordSet  bool                `json:"password_set"`
	Loading      bool                `json:"loading"`
	Notification domain.Notification `json:"notification"`
	Redirecting  bool                `json:"redirecting"`
	Destination  string              `json:"destination,omitempty"`
}

// CanSubmit reports whether the submit action should be enabled.
func (v ViewState) CanSubmit() bool {
	return !v.Loading && !v.Redirecting && v.Destination == ""
}

func (v ViewState) withCredentials(c domain.Credentials) ViewState {
	v.Email = c.Email
	v.PasswordSet = c.Password != ""
	return v
}

func (v ViewState) submitting() ViewState {
	v.Loading = true
	return v
}

func (v ViewState) settled() ViewState {
	v.Loading = false
	return v
}

func (v ViewState) notified(severity domain.Severity, message string) ViewState {
	v.Notification = domain.Notification{Visible: true, Message: message, Severity: severity}
	return v
}

func (v ViewState) dismissed() ViewState {
	v.Notification.Visible = false
	return v
}

func (v ViewState) redirecting() ViewState {
	v.Redirecting = true
	return v
}

func (v ViewState) navigated(path string) ViewState {
	v.Redirecting = false
	v.Destination = path
	v.Email = ""
	v.PasswordSet = false
	return v
}
