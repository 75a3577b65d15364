package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

const defaultIssuer = "magic-auth"

// Codec creates and verifies the three token kinds. It performs no I/O and is safe for
// concurrent use.
type Codec struct {
	magicLinkSigner Signer
	accessSigner    Signer
	refreshSigner   Signer

	issuer          string
	magicLinkExpiry time.Duration
	accessExpiry    time.Duration
	refreshExpiry   time.Duration
	nowFunc         func() time.Time
}

type CodecOption func(*Codec)

// WithNowFunc overrides the clock used for issuing and validating tokens.
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// NewCodec builds a Codec from the token configuration. A misconfigured key set is a startup
// error, never a per-request one.
func NewCodec(cfg config.TokenConfig, options ...CodecOption) (*Codec, error) {
	if cfg == nil {
		return nil, errors.Wrapf(errors.ErrConfig, "[NewCodec] token config is required")
	}
	keys, err := resolveSecrets(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewCodec]")
	}

	c := &Codec{
		magicLinkSigner: NewHMACSigner(keys.magicLink),
		accessSigner:    NewHMACSigner(keys.access),
		refreshSigner:   NewHMACSigner(keys.refresh),
		issuer:          cfg.GetTokenIssuer(),
		magicLinkExpiry: cfg.GetMagicLinkTokenExpiry(),
		accessExpiry:    cfg.GetAccessTokenExpiry(),
		refreshExpiry:   cfg.GetRefreshTokenExpiry(),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.issuer == "" {
		c.issuer = defaultIssuer
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c, nil
}

// AccessTokenInput is the profile snapshot embedded in an access token.
type AccessTokenInput struct {
	UserID        string
	Email         string
	FirstName     string
	LastName      string
	FirstVisit    bool
	SetupComplete *bool
	Scopes        []string
}

func (c *Codec) CreateMagicLinkToken(userID, email string) (string, error) {
	return c.sign(c.magicLinkSigner, &MagicLinkClaims{
		Kind:             KindMagicLink,
		UserID:           userID,
		Email:            email,
		RegisteredClaims: c.registeredClaims(c.magicLinkExpiry),
	})
}

func (c *Codec) VerifyMagicLinkToken(rawToken string) (*MagicLinkClaims, error) {
	claims := &MagicLinkClaims{}
	if err := c.parse(rawToken, c.magicLinkSigner, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.Email == "" {
		return nil, errors.ErrTokenInvalid
	}
	return claims, nil
}

func (c *Codec) CreateAccessToken(in AccessTokenInput) (string, error) {
	scopes := in.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return c.sign(c.accessSigner, &AccessClaims{
		Kind:             KindAccess,
		UserID:           in.UserID,
		Email:            in.Email,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		FirstVisit:       in.FirstVisit,
		SetupComplete:    in.SetupComplete,
		Scopes:           scopes,
		RegisteredClaims: c.registeredClaims(c.accessExpiry),
	})
}

func (c *Codec) VerifyAccessToken(rawToken string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(rawToken, c.accessSigner, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.Email == "" {
		return nil, errors.ErrTokenInvalid
	}
	return claims, nil
}

func (c *Codec) CreateRefreshToken(userID string, tokenVersion int) (string, error) {
	return c.sign(c.refreshSigner, &RefreshClaims{
		Kind:             KindRefresh,
		UserID:           userID,
		TokenVersion:     tokenVersion,
		RegisteredClaims: c.registeredClaims(c.refreshExpiry),
	})
}

// VerifyRefreshToken checks signature, expiry and shape. Whether TokenVersion is still current
// is for the caller to decide against the identity store.
func (c *Codec) VerifyRefreshToken(rawToken string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(rawToken, c.refreshSigner, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.TokenVersion < 0 {
		return nil, errors.ErrTokenInvalid
	}
	return claims, nil
}

// MagicLinkTokenExpiry is the lifetime of issued magic-link tokens.
func (c *Codec) MagicLinkTokenExpiry() time.Duration {
	return c.magicLinkExpiry
}

func (c *Codec) registeredClaims(ttl time.Duration) jwt.RegisteredClaims {
	now := c.nowFunc()
	return jwt.RegisteredClaims{
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) sign(signer Signer, claims jwt.Claims) (string, error) {
	signed, err := signer.Sign(claims)
	if err != nil {
		return "", errors.Wrapf(err, "[Codec.sign]")
	}
	return signed, nil
}

// parse verifies rawToken into claims. Every failure, whatever the cause, is ErrTokenInvalid.
func (c *Codec) parse(rawToken string, signer Signer, claims jwt.Claims) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return errors.ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(rawToken, claims, signer.GetVerificationKey,
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithStrictDecoding(),
	)
	if err != nil || !token.Valid {
		return errors.ErrTokenInvalid
	}
	return nil
}
