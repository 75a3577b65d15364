package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the token codec, the identity stores and the session flows.
// The transport layer maps these to status codes per route.
var (
	// Client-fixable input problems
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("resource already exists")
	ErrNotFound   = errors.New("not found")

	// Token errors. Verification never says why a token was rejected.
	ErrTokenInvalid = errors.New("token is invalid")

	// Collaborator failures
	ErrDelivery = errors.New("email delivery failed")
	ErrStore    = errors.New("identity store failure")

	// ErrVersionConflict is returned by a conditional token_version increment when the
	// stored version no longer matches the expected one.
	ErrVersionConflict = errors.New("token version conflict")

	// Startup errors
	ErrConfig = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Mark wraps err with context so that it matches both kind and err.
func Mark(err, kind error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w: %w", append(args, kind, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
