package token

import (
	"bytes"
	"crypto/sha256"
	"io"

	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const derivedSecretLength = 32 // 256 bits

type secrets struct {
	magicLink []byte
	access    []byte
	refresh   []byte
}

// resolveSecrets picks the configured secret for each kind, deriving the missing ones from
// the master secret. The three resulting keys must be distinct.
func resolveSecrets(cfg config.TokenConfig) (secrets, error) {
	var s secrets
	var err error
	if s.magicLink, err = secretFor(KindMagicLink, cfg.GetMagicLinkTokenSecret(), cfg.GetMasterTokenSecret()); err != nil {
		return secrets{}, err
	}
	if s.access, err = secretFor(KindAccess, cfg.GetAccessTokenSecret(), cfg.GetMasterTokenSecret()); err != nil {
		return secrets{}, err
	}
	if s.refresh, err = secretFor(KindRefresh, cfg.GetRefreshTokenSecret(), cfg.GetMasterTokenSecret()); err != nil {
		return secrets{}, err
	}

	if bytes.Equal(s.magicLink, s.access) || bytes.Equal(s.magicLink, s.refresh) || bytes.Equal(s.access, s.refresh) {
		return secrets{}, errors.Wrapf(errors.ErrConfig, "token secrets must differ per token kind")
	}
	return s, nil
}

func secretFor(kind Kind, configured, master string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	if master == "" {
		return nil, errors.Wrapf(errors.ErrConfig, "no secret configured for %s tokens", kind)
	}
	return deriveSecret(master, kind)
}

// deriveSecret expands the master secret with HKDF-SHA256, using the token kind as info.
func deriveSecret(master string, kind Kind) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(master), nil, []byte("magic-auth/"+string(kind)))
	key := make([]byte, derivedSecretLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrapf(err, "deriving %s secret", kind)
	}
	return key, nil
}
