package config

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

type StoreBackend string

const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendHasura   StoreBackend = "hasura"
)

const DefaultStoreTimeout = 5 * time.Second

type StoreConfig interface {
	GetStoreBackend() StoreBackend
	GetDatabaseURL() string
	GetHasuraURL() string
	GetHasuraAdminSecret() string
	GetStoreTimeout() time.Duration
}

type Store struct {
	Backend           StoreBackend
	DatabaseURL       string
	HasuraURL         string
	HasuraAdminSecret string
	Timeout           time.Duration
}

var _ StoreConfig = Store{}

func loadStore() (Store, error) {
	s := Store{
		Backend:           StoreBackend(strings.ToLower(GetEnv("STORE_BACKEND", string(StoreBackendMemory)))),
		DatabaseURL:       GetEnv("DATABASE_URL", ""),
		HasuraURL:         GetEnv("HASURA_URL", ""),
		HasuraAdminSecret: GetEnv("HASURA_ADMIN_SECRET", ""),
	}
	var err error
	if s.Timeout, err = GetEnvDuration("STORE_TIMEOUT", DefaultStoreTimeout); err != nil {
		return Store{}, err
	}
	return s, nil
}

func (s Store) Validate() error {
	switch s.Backend {
	case StoreBackendMemory:
		return nil
	case StoreBackendPostgres:
		if s.DatabaseURL == "" {
			return errors.Wrapf(errors.ErrConfig, "DATABASE_URL is required for the postgres store")
		}
		return nil
	case StoreBackendHasura:
		if s.HasuraURL == "" {
			return errors.Wrapf(errors.ErrConfig, "HASURA_URL is required for the hasura store")
		}
		return nil
	default:
		return errors.Wrapf(errors.ErrConfig, "unknown STORE_BACKEND %q", s.Backend)
	}
}

func (s Store) GetStoreBackend() StoreBackend { return s.Backend }
func (s Store) GetDatabaseURL() string        { return s.DatabaseURL }
func (s Store) GetHasuraURL() string          { return s.HasuraURL }
func (s Store) GetHasuraAdminSecret() string  { return s.HasuraAdminSecret }

func (s Store) GetStoreTimeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultStoreTimeout
	}
	return s.Timeout
}
