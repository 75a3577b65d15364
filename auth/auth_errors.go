package auth

import (
	"fmt"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

// Refinements of the shared taxonomy that callers may want to tell apart. Each still
// matches its parent sentinel with errors.Is.
var (
	// ErrRefreshSuperseded is a well-formed refresh token whose user is gone or whose
	// token version has been revoked.
	ErrRefreshSuperseded = fmt.Errorf("%w: refresh token superseded", errors.ErrTokenInvalid)

	// ErrScopeMissing means a well-known scope is absent from the identity store.
	ErrScopeMissing = fmt.Errorf("%w: scope not configured", errors.ErrStore)
)
