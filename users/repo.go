package users

import "context"

// IdentityStore is the persistence contract for users and scopes.
//
// Lookups return (nil, nil) when nothing matches. IncrementTokenVersion must be a single
// conditional update: it sets token_version to current+1 only while the stored value still
// equals current, returning errors.ErrVersionConflict otherwise and errors.ErrNotFound when
// the user does not exist.
type IdentityStore interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user NewUser, scopeID string) (*User, error)
	IncrementTokenVersion(ctx context.Context, id string, current int) (*User, error)
	GetScopeIDByName(ctx context.Context, name string) (*Scope, error)
}
