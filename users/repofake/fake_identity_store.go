package repofake

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/internal/utils"
	"github.com/jrsteele09/go-magic-auth/users"
)

var _ users.IdentityStore = (*IdentityStore)(nil)

// IdentityStore is an in-memory users.IdentityStore. Returned users are copies, so callers
// cannot mutate stored state.
type IdentityStore struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	scopes   map[string]users.Scope
	lock     sync.RWMutex
}

// NewIdentityStore returns a store seeded with the practitioner and client scopes.
func NewIdentityStore() *IdentityStore {
	s := &IdentityStore{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
		scopes:   make(map[string]users.Scope),
	}
	s.AddScope(users.ScopePractitioner)
	s.AddScope(users.ScopeClient)
	return s
}

// AddScope registers a scope name, returning the existing scope if already present.
func (s *IdentityStore) AddScope(name string) users.Scope {
	s.lock.Lock()
	defer s.lock.Unlock()

	if scope, ok := s.scopes[name]; ok {
		return scope
	}
	scope := users.Scope{ID: uuid.New().String(), Name: name}
	s.scopes[name] = scope
	return scope
}

// RemoveScope deletes a scope so tests can exercise an unresolvable scope.
func (s *IdentityStore) RemoveScope(name string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.scopes, name)
}

// DeleteUser removes a user, simulating deletion by another system.
func (s *IdentityStore) DeleteUser(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if u, ok := s.users[id]; ok {
		delete(s.emailIds, u.Email)
		delete(s.users, id)
	}
}

// Count returns the number of stored users.
func (s *IdentityStore) Count() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.users)
}

// SetSetupComplete updates a practitioner's profile.
func (s *IdentityStore) SetSetupComplete(id string, complete bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	u, ok := s.users[id]
	if !ok || u.Practitioner == nil {
		return errors.ErrNotFound
	}
	u.Practitioner.SetupComplete = complete
	return nil
}

func (s *IdentityStore) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "%v", err)
	}
	s.lock.RLock()
	defer s.lock.RUnlock()

	id, ok := s.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return copyUser(s.users[id]), nil
}

func (s *IdentityStore) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "%v", err)
	}
	s.lock.RLock()
	defer s.lock.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (s *IdentityStore) CreateUser(ctx context.Context, newUser users.NewUser, scopeID string) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "%v", err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	email := users.NormalizeEmail(newUser.Email)
	if _, ok := s.emailIds[email]; ok {
		return nil, errors.Wrapf(errors.ErrConflict, "user %s", email)
	}

	var scope *users.Scope
	for _, sc := range s.scopes {
		if sc.ID == scopeID {
			scope = &sc
			break
		}
	}
	if scope == nil {
		return nil, errors.Wrapf(errors.ErrStore, "unknown scope id %q", scopeID)
	}

	u := &users.User{
		ID:         uuid.New().String(),
		Email:      email,
		FirstName:  newUser.FirstName,
		LastName:   newUser.LastName,
		FirstVisit: true,
		Scopes:     []users.Scope{*scope},
	}
	if newUser.Practitioner {
		u.Practitioner = &users.PractitionerProfile{}
	}
	s.users[u.ID] = u
	s.emailIds[email] = u.ID
	return copyUser(u), nil
}

func (s *IdentityStore) IncrementTokenVersion(ctx context.Context, id string, current int) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "%v", err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "user %s", id)
	}
	if u.TokenVersion != current {
		return nil, errors.Wrapf(errors.ErrVersionConflict, "user %s at version %d, expected %d", id, u.TokenVersion, current)
	}
	u.TokenVersion++
	return copyUser(u), nil
}

func (s *IdentityStore) GetScopeIDByName(ctx context.Context, name string) (*users.Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "%v", err)
	}
	s.lock.RLock()
	defer s.lock.RUnlock()

	scope, ok := s.scopes[name]
	if !ok {
		return nil, nil
	}
	return &scope, nil
}

func copyUser(u *users.User) *users.User {
	c := *u
	c.Scopes = append([]users.Scope(nil), u.Scopes...)
	c.Practitioner = utils.Clone(u.Practitioner)
	return &c
}
