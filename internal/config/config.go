package config

import (
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	StoreConfig
	MailConfig
	Validate() error
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Store
	Mail
}

var _ Config = (*mainConfig)(nil)

// Load reads the process configuration once. Values come from the environment, optionally
// seeded from the given .env files (".env" when none are named). Missing files are ignored.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(errors.ErrConfig, "loading env files: %v", err)
	}

	c := &mainConfig{
		EnvVars: loadEnvVars(),
		Cors:    loadCors(),
	}

	var err error
	if c.Tokens, err = loadTokens(); err != nil {
		return nil, err
	}
	if c.Store, err = loadStore(); err != nil {
		return nil, err
	}
	if c.Mail, err = loadMail(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *mainConfig) Validate() error {
	if err := c.Tokens.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Mail.Validate()
}
