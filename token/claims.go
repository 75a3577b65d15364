package token

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Kind names the purpose of a token. It is carried in the "typ" claim and each kind is
// signed with its own secret.
type Kind string

const (
	KindMagicLink Kind = "magic_link"
	KindAccess    Kind = "access"
	KindRefresh   Kind = "refresh"
)

// Claim names present on every token.
var registeredClaimNames = []string{"typ", "iss", "iat", "exp"}

var (
	magicLinkClaimNames = []string{"id", "email"}
	accessClaimNames    = []string{"id", "email", "firstName", "lastName", "firstVisit", "setupComplete", "scopes"}
	refreshClaimNames   = []string{"id", "tokenVersion"}
)

// MagicLinkClaims is the payload of the emailed one-time login token.
type MagicLinkClaims struct {
	Kind   Kind   `json:"typ"`
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AccessClaims is the payload of the short-lived access token. Scopes reflect the user's
// scopes at the time of issue.
type AccessClaims struct {
	Kind          Kind     `json:"typ"`
	UserID        string   `json:"id"`
	Email         string   `json:"email"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	FirstVisit    bool     `json:"firstVisit"`
	SetupComplete *bool    `json:"setupComplete"` // null for users without a practitioner profile
	Scopes        []string `json:"scopes"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of the long-lived refresh token. It is only honoured while
// TokenVersion equals the user's stored token_version.
type RefreshClaims struct {
	Kind         Kind   `json:"typ"`
	UserID       string `json:"id"`
	TokenVersion int    `json:"tokenVersion"`
	jwt.RegisteredClaims
}

func (c *MagicLinkClaims) UnmarshalJSON(data []byte) error {
	type alias MagicLinkClaims
	return decodeStrict(data, KindMagicLink, magicLinkClaimNames, nil, (*alias)(c))
}

func (c *AccessClaims) UnmarshalJSON(data []byte) error {
	type alias AccessClaims
	return decodeStrict(data, KindAccess, accessClaimNames, []string{"setupComplete"}, (*alias)(c))
}

func (c *RefreshClaims) UnmarshalJSON(data []byte) error {
	type alias RefreshClaims
	return decodeStrict(data, KindRefresh, refreshClaimNames, nil, (*alias)(c))
}

// decodeStrict decodes a claims object that must contain exactly the registered claims plus
// fields, none of them null unless listed in nullable, and whose "typ" equals kind.
func decodeStrict(data []byte, kind Kind, fields []string, nullable []string, v any) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	expected := make([]string, 0, len(registeredClaimNames)+len(fields))
	expected = append(expected, registeredClaimNames...)
	expected = append(expected, fields...)

	if len(raw) != len(expected) {
		return fmt.Errorf("expected %d claims, got %d", len(expected), len(raw))
	}
	for _, name := range expected {
		value, ok := raw[name]
		if !ok {
			return fmt.Errorf("missing claim %q", name)
		}
		if string(value) == "null" && !contains(nullable, name) {
			return fmt.Errorf("claim %q is null", name)
		}
	}

	var k Kind
	if err := json.Unmarshal(raw["typ"], &k); err != nil {
		return err
	}
	if k != kind {
		return fmt.Errorf("token kind %q, want %q", k, kind)
	}

	return json.Unmarshal(data, v)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
