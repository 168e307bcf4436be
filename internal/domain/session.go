package domain

import "strings"

// Role is the marketplace role attached to a backend user profile.
type Role string

const (
	RoleUser     Role = "USER"
	RoleRetailer Role = "RETAILER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole maps a profile role string to a Role. Matching is
// case-insensitive; unknown values report false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleRetailer:
		return RoleRetailer, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Principal is a verified identity taken from an identity provider token.
type Principal struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// Session is the per-request view of who is calling.
//
// Identity == nil means anonymous. Role == nil means the role is unknown
// because resolution has not completed (or failed); callers must not treat
// it as anonymous or as any particular role.
type Session struct {
	Identity *Principal `json:"identity"`
	Role     *Role      `json:"role"`
	Resolved bool       `json:"resolved"`

	// UserID is the backend user id resolved from the identity's email.
	UserID  string   `json:"userId,omitempty"`
	Profile *Profile `json:"-"`
}

// AnonymousSession returns the resolved session of a caller without identity.
func AnonymousSession() Session {
	return Session{Resolved: true}
}

// Anonymous reports whether the caller has no identity.
func (s Session) Anonymous() bool {
	return s.Identity == nil
}

// HasRole reports whether the role has been resolved to one of roles.
func (s Session) HasRole(roles ...Role) bool {
	if s.Role == nil {
		return false
	}
	for _, r := range roles {
		if *s.Role == r {
			return true
		}
	}
	return false
}

// Email returns the identity's email, or "" for anonymous sessions.
func (s Session) Email() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Email
}
