package auth

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/mail"
	"github.com/jrsteele09/go-magic-auth/token"
	"github.com/jrsteele09/go-magic-auth/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultStoreTimeout  = 5 * time.Second
	DefaultNotifyTimeout = 30 * time.Second
)

// DispatchResult reports where a magic link was sent.
type DispatchResult struct {
	Email string
}

// TokenPair is a working session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// NewClient holds the profile fields supplied when creating a client user.
type NewClient struct {
	Email     string
	FirstName string
	LastName  string
}

// SessionService runs the login, invite, session, refresh and revoke flows. It holds no
// per-request state; the identity store is the single source of truth for token versions.
type SessionService struct {
	store         users.IdentityStore
	codec         *token.Codec
	notifier      mail.Notifier
	logger        zerolog.Logger
	metrics       *Metrics
	storeTimeout  time.Duration
	notifyTimeout time.Duration
	nowFunc       func() time.Time
}

type SessionServiceOption func(*SessionService)

func WithLogger(logger zerolog.Logger) SessionServiceOption {
	return func(s *SessionService) {
		s.logger = logger
	}
}

func WithMetrics(metrics *Metrics) SessionServiceOption {
	return func(s *SessionService) {
		s.metrics = metrics
	}
}

// WithStoreTimeout bounds each identity store call.
func WithStoreTimeout(timeout time.Duration) SessionServiceOption {
	return func(s *SessionService) {
		s.storeTimeout = timeout
	}
}

// WithNotifyTimeout bounds each magic-link delivery.
func WithNotifyTimeout(timeout time.Duration) SessionServiceOption {
	return func(s *SessionService) {
		s.notifyTimeout = timeout
	}
}

func NewSessionService(store users.IdentityStore, codec *token.Codec, notifier mail.Notifier, options ...SessionServiceOption) (*SessionService, error) {
	if store == nil || codec == nil || notifier == nil {
		return nil, errors.Wrapf(errors.ErrConfig, "[NewSessionService] store, codec and notifier are required")
	}

	s := &SessionService{
		store:         store,
		codec:         codec,
		notifier:      notifier,
		logger:        log.Logger,
		storeTimeout:  DefaultStoreTimeout,
		notifyTimeout: DefaultNotifyTimeout,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = DefaultNotifyTimeout
	}
	return s, nil
}

// InvitePractitioner creates a practitioner with an empty profile and emails a magic link.
// If delivery fails the user remains created; Login can reach them later.
func (s *SessionService) InvitePractitioner(ctx context.Context, email string) (result *DispatchResult, err error) {
	defer s.observe(FlowInvitePractitioner, s.nowFunc(), &err)
	return s.createAndDispatch(ctx, users.NewUser{Email: email, Practitioner: true}, users.ScopePractitioner)
}

// CreateClient creates a client user and emails a magic link. An existing email is a
// conflict, never a silent login.
func (s *SessionService) CreateClient(ctx context.Context, client NewClient) (result *DispatchResult, err error) {
	defer s.observe(FlowCreateClient, s.nowFunc(), &err)
	return s.createAndDispatch(ctx, users.NewUser{
		Email:     client.Email,
		FirstName: strings.TrimSpace(client.FirstName),
		LastName:  strings.TrimSpace(client.LastName),
	}, users.ScopeClient)
}

// Login emails a magic link to an existing user. Unknown emails are ErrNotFound and create
// nothing.
func (s *SessionService) Login(ctx context.Context, email string) (result *DispatchResult, err error) {
	defer s.observe(FlowLogin, s.nowFunc(), &err)

	normalized, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	u, err := s.getUserByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "user with email %s", normalized)
	}
	return s.dispatch(ctx, u)
}

// EstablishSession exchanges a magic-link token for an access and refresh token pair. The
// refresh token carries the user's current token version.
func (s *SessionService) EstablishSession(ctx context.Context, magicLinkToken string) (pair *TokenPair, err error) {
	defer s.observe(FlowEstablishSession, s.nowFunc(), &err)

	claims, err := s.codec.VerifyMagicLinkToken(magicLinkToken)
	if err != nil {
		return nil, err
	}

	u, err := s.getUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "user %s", claims.UserID)
	}
	return s.issuePair(u)
}

// Refresh issues a fresh pair for a refresh token whose version is still current.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer s.observe(FlowRefresh, s.nowFunc(), &err)

	claims, err := s.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.getUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.TokenVersion != claims.TokenVersion {
		return nil, ErrRefreshSuperseded
	}
	return s.issuePair(u)
}

// Revoke invalidates every refresh token issued to the token's user by bumping the stored
// token version. Access tokens already issued stay valid until they expire.
func (s *SessionService) Revoke(ctx context.Context, refreshToken string) (err error) {
	defer s.observe(FlowRevoke, s.nowFunc(), &err)

	if strings.TrimSpace(refreshToken) == "" {
		return errors.Wrapf(errors.ErrValidation, "refresh token is required")
	}

	claims, err := s.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		return err
	}

	u, err := s.getUserByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if u == nil {
		return errors.Wrapf(errors.ErrNotFound, "user %s", claims.UserID)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if _, err := s.store.IncrementTokenVersion(storeCtx, u.ID, u.TokenVersion); err != nil {
		switch {
		case errors.Is(err, errors.ErrVersionConflict):
			// A concurrent revoke already moved past the version we loaded.
			return nil
		case errors.Is(err, errors.ErrNotFound):
			return err
		default:
			return storeError(err, "[SessionService.Revoke] incrementing token version")
		}
	}
	return nil
}

func (s *SessionService) createAndDispatch(ctx context.Context, newUser users.NewUser, scopeName string) (*DispatchResult, error) {
	email, err := ValidateEmail(newUser.Email)
	if err != nil {
		return nil, err
	}
	newUser.Email = email

	existing, err := s.getUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Wrapf(errors.ErrConflict, "user with email %s", email)
	}

	storeCtx, cancel := s.storeContext(ctx)
	scope, err := s.store.GetScopeIDByName(storeCtx, scopeName)
	cancel()
	if err != nil {
		return nil, storeError(err, "[SessionService] resolving scope %s", scopeName)
	}
	if scope == nil {
		return nil, errors.Wrapf(ErrScopeMissing, "%s", scopeName)
	}

	storeCtx, cancel = s.storeContext(ctx)
	created, err := s.store.CreateUser(storeCtx, newUser, scope.ID)
	cancel()
	if err != nil {
		if errors.Is(err, errors.ErrConflict) {
			return nil, err
		}
		return nil, storeError(err, "[SessionService] creating user %s", email)
	}
	if created == nil {
		return nil, errors.Wrapf(errors.ErrStore, "[SessionService] user %s not created", email)
	}

	s.logger.Info().Str("user_id", created.ID).Str("scope", scopeName).Msg("user created")
	return s.dispatch(ctx, created)
}

// dispatch issues a magic link for u and waits for the delivery outcome.
func (s *SessionService) dispatch(ctx context.Context, u *users.User) (*DispatchResult, error) {
	magicLink, err := s.codec.CreateMagicLinkToken(u.ID, u.Email)
	if err != nil {
		return nil, errors.Wrapf(err, "[SessionService] creating magic link")
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	if err := s.notifier.SendMagicLink(notifyCtx, u.Email, magicLink); err != nil {
		if !errors.Is(err, errors.ErrDelivery) {
			err = errors.Mark(err, errors.ErrDelivery, "[SessionService] sending magic link")
		}
		return nil, err
	}
	return &DispatchResult{Email: u.Email}, nil
}

func (s *SessionService) issuePair(u *users.User) (*TokenPair, error) {
	refreshToken, err := s.codec.CreateRefreshToken(u.ID, u.TokenVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "[SessionService] creating refresh token")
	}
	accessToken, err := s.codec.CreateAccessToken(token.AccessTokenInput{
		UserID:        u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		FirstVisit:    u.FirstVisit,
		SetupComplete: u.SetupComplete(),
		Scopes:        u.ScopeNames(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[SessionService] creating access token")
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *SessionService) getUserByEmail(ctx context.Context, email string) (*users.User, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	u, err := s.store.GetUserByEmail(storeCtx, email)
	if err != nil {
		return nil, storeError(err, "[SessionService] loading user by email")
	}
	return u, nil
}

func (s *SessionService) getUserByID(ctx context.Context, id string) (*users.User, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	u, err := s.store.GetUserByID(storeCtx, id)
	if err != nil {
		return nil, storeError(err, "[SessionService] loading user %s", id)
	}
	return u, nil
}

func (s *SessionService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// observe records the flow outcome. Tokens are never logged.
func (s *SessionService) observe(flow string, start time.Time, errp *error) {
	err := *errp
	outcome := Outcome(err)
	s.metrics.observe(flow, outcome, s.nowFunc().Sub(start))

	event := s.logger.Info()
	if outcome == "store" || outcome == "delivery" || outcome == "error" {
		event = s.logger.Error().Err(err)
	}
	event.Str("flow", flow).Str("outcome", outcome).Msg("session flow")
}

// storeError marks unexpected store failures as ErrStore so they surface as server errors.
func storeError(err error, format string, args ...interface{}) error {
	if errors.Is(err, errors.ErrStore) {
		return errors.Wrapf(err, format, args...)
	}
	return errors.Mark(err, errors.ErrStore, format, args...)
}
