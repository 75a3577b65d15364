package auth

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/users"
)

// emailPattern accepts a dotted or quoted local part and either a domain with an alphabetic
// TLD of two or more letters or a bracketed IPv4 literal. Quoted local parts never span a
// line break.
var emailPattern = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|("[^\r\n\x{2028}\x{2029}]+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

const maxEmailLength = 254

// ValidateEmail trims email and checks its syntax, returning the normalized address.
func ValidateEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", errors.Wrapf(errors.ErrValidation, "email is required")
	}
	// Addresses end up in mail headers.
	if strings.IndexFunc(trimmed, unicode.IsControl) >= 0 {
		return "", errors.Wrapf(errors.ErrValidation, "email contains control characters")
	}
	if len(trimmed) > maxEmailLength || !emailPattern.MatchString(trimmed) {
		return "", errors.Wrapf(errors.ErrValidation, "malformed email %q", trimmed)
	}
	return users.NormalizeEmail(trimmed), nil
}
