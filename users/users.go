package users

import (
	"sort"
	"strings"
)

// Well-known scope names.
const (
	ScopePractitioner = "practitioner"
	ScopeClient       = "client"
)

// Scope is a named role granted to users.
type Scope struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PractitionerProfile is present only for users invited as practitioners.
type PractitionerProfile struct {
	SetupComplete bool `json:"setup_complete"`
}

type User struct {
	ID           string               `json:"id"`            // Unique, stable identifier
	Email        string               `json:"email"`         // Lowercased email address
	FirstName    string               `json:"first_name"`    // First name of the user
	LastName     string               `json:"last_name"`     // Last name of the user
	FirstVisit   bool                 `json:"first_visit"`   // True until the user completes onboarding
	TokenVersion int                  `json:"token_version"` // Refresh tokens are honoured only at this version
	Scopes       []Scope              `json:"scopes"`
	Practitioner *PractitionerProfile `json:"practitioner,omitempty"`
}

// NewUser holds the fields supplied when a user is created. Practitioner creates an empty
// practitioner profile alongside the user.
type NewUser struct {
	Email        string
	FirstName    string
	LastName     string
	Practitioner bool
}

// ScopeNames returns the user's scope names in sorted order, never nil.
func (u *User) ScopeNames() []string {
	names := make([]string, 0, len(u.Scopes))
	for _, s := range u.Scopes {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

func (u *User) HasScope(name string) bool {
	for _, s := range u.Scopes {
		if s.Name == name {
			return true
		}
	}
	return false
}

// SetupComplete returns the practitioner profile's setup flag, or nil when the user has no
// practitioner profile.
func (u *User) SetupComplete() *bool {
	if u.Practitioner == nil {
		return nil
	}
	complete := u.Practitioner.SetupComplete
	return &complete
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
