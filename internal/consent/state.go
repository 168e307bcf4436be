// Package consent decides when the web client should prompt for a location
// or a sign-in, and records the outcome of those prompts.
package consent

import "github.com/abhishek-Rj/Topprix-sub001/internal/domain"

// State is the outcome of evaluating the consent flow for a page view.
type State string

const (
	StateIdle               State = "idle"
	StateEvaluating         State = "evaluating"
	StateShowLocationDialog State = "show_location_dialog"
	StateShowLoginPrompt    State = "show_login_prompt"
	StateSuppressed         State = "suppressed"
)

// RootPath is the only path the prompts are shown on.
const RootPath = "/"

// Markers is the persisted consent state of one session.
type Markers struct {
	LocationPromptShown bool     `json:"locationPromptShown"`
	LoginPromptShown    bool     `json:"loginPromptShown"`
	LocationSkipped     bool     `json:"locationSkipped"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
}

// Input is everything Decide looks at.
type Input struct {
	Path    string
	Session domain.Session
	Markers Markers
}

// Decision is the result of Decide. Changed reports whether Markers differs
// from the input markers and must be saved.
type Decision struct {
	State   State   `json:"state"`
	Markers Markers `json:"markers"`
	Changed bool    `json:"-"`
}

// Decide runs one evaluation of the consent flow.
//
// Off the root path nothing is shown and both "shown" markers are cleared,
// so the prompts may appear again on the next visit to root. On root an
// anonymous caller gets the login prompt once; a signed-in USER whose
// profile has no location and who has not skipped gets the location dialog
// once. Everyone else is suppressed, including callers whose role is not
// yet known.
func Decide(in Input) Decision {
	m := in.Markers

	if in.Path != RootPath {
		changed := m.LocationPromptShown || m.LoginPromptShown
		m.LocationPromptShown = false
		m.LoginPromptShown = false
		return Decision{State: StateIdle, Markers: m, Changed: changed}
	}

	s := in.Session
	if s.Anonymous() {
		if m.LoginPromptShown {
			return Decision{State: StateSuppressed, Markers: m}
		}
		m.LoginPromptShown = true
		return Decision{State: StateShowLoginPrompt, Markers: m, Changed: true}
	}

	if !s.Resolved || !s.HasRole(domain.RoleUser) {
		return Decision{State: StateSuppressed, Markers: m}
	}
	if m.LocationSkipped || (s.Profile != nil && s.Profile.LocationSkipped) {
		return Decision{State: StateSuppressed, Markers: m}
	}
	if s.Profile.HasLocation() || m.LocationPromptShown {
		return Decision{State: StateSuppressed, Markers: m}
	}

	m.LocationPromptShown = true
	return Decision{State: StateShowLocationDialog, Markers: m, Changed: true}
}
