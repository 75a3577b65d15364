package config

import (
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

const (
	DefaultMagicLinkTokenExpiry = 15 * time.Minute
	DefaultAccessTokenExpiry    = 15 * time.Minute
	DefaultRefreshTokenExpiry   = 7 * 24 * time.Hour // 7 days
)

type TokenConfig interface {
	GetMagicLinkTokenSecret() string
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetMasterTokenSecret() string
	GetMagicLinkTokenExpiry() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetTokenIssuer() string
}

// Tokens holds signing material and lifetimes for the three token kinds.
// A per-kind secret left empty is derived from MasterSecret by the token package.
type Tokens struct {
	MagicLinkSecret string
	AccessSecret    string
	RefreshSecret   string
	MasterSecret    string
	MagicLinkExpiry time.Duration
	AccessExpiry    time.Duration
	RefreshExpiry   time.Duration
	Issuer          string
}

var _ TokenConfig = Tokens{}

func loadTokens() (Tokens, error) {
	t := Tokens{
		MagicLinkSecret: GetEnv("MAGIC_LINK_TOKEN_SECRET", ""),
		AccessSecret:    GetEnv("ACCESS_TOKEN_SECRET", ""),
		RefreshSecret:   GetEnv("REFRESH_TOKEN_SECRET", ""),
		MasterSecret:    GetEnv("TOKEN_MASTER_SECRET", ""),
		Issuer:          GetEnv("TOKEN_ISSUER", "magic-auth"),
	}

	var err error
	if t.MagicLinkExpiry, err = GetEnvDuration("MAGIC_LINK_TOKEN_EXPIRY", DefaultMagicLinkTokenExpiry); err != nil {
		return Tokens{}, err
	}
	if t.AccessExpiry, err = GetEnvDuration("ACCESS_TOKEN_EXPIRY", DefaultAccessTokenExpiry); err != nil {
		return Tokens{}, err
	}
	if t.RefreshExpiry, err = GetEnvDuration("REFRESH_TOKEN_EXPIRY", DefaultRefreshTokenExpiry); err != nil {
		return Tokens{}, err
	}
	return t, nil
}

// Validate requires either a master secret or all three per-kind secrets.
func (t Tokens) Validate() error {
	if t.MasterSecret != "" {
		return nil
	}
	if t.MagicLinkSecret == "" || t.AccessSecret == "" || t.RefreshSecret == "" {
		return errors.Wrapf(errors.ErrConfig, "TOKEN_MASTER_SECRET or all of MAGIC_LINK_TOKEN_SECRET, ACCESS_TOKEN_SECRET, REFRESH_TOKEN_SECRET must be set")
	}
	return nil
}

func (t Tokens) GetMagicLinkTokenSecret() string { return t.MagicLinkSecret }
func (t Tokens) GetAccessTokenSecret() string    { return t.AccessSecret }
func (t Tokens) GetRefreshTokenSecret() string   { return t.RefreshSecret }
func (t Tokens) GetMasterTokenSecret() string    { return t.MasterSecret }

func (t Tokens) GetMagicLinkTokenExpiry() time.Duration {
	if t.MagicLinkExpiry <= 0 {
		return DefaultMagicLinkTokenExpiry
	}
	return t.MagicLinkExpiry
}

func (t Tokens) GetAccessTokenExpiry() time.Duration {
	if t.AccessExpiry <= 0 {
		return DefaultAccessTokenExpiry
	}
	return t.AccessExpiry
}

func (t Tokens) GetRefreshTokenExpiry() time.Duration {
	if t.RefreshExpiry <= 0 {
		return DefaultRefreshTokenExpiry
	}
	return t.RefreshExpiry
}

func (t Tokens) GetTokenIssuer() string {
	return t.Issuer
}
