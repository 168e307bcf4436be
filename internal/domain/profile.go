package domain

// Profile is the identity provider's profile document as served by the
// backend.
type Profile struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	LocationSkipped bool     `json:"locationSkipped"`
}

// HasLocation reports whether either coordinate is stored.
func (p *Profile) HasLocation() bool {
	return p != nil && (p.Latitude != nil || p.Longitude != nil)
}

// Location is a geocoded coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationUpdate is the body of a profile location patch. Nil fields are
// left unchanged by the backend.
type LocationUpdate struct {
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	LocationSkipped *bool    `json:"locationSkipped,omitempty"`
}
