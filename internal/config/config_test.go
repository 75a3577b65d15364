package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TOKEN_MASTER_SECRET", "master")
	t.Setenv("PORT", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("MAIL_BACKEND", "")

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, config.StoreBackendMemory, c.GetStoreBackend())
	require.Equal(t, config.MailBackendLog, c.GetMailBackend())
	require.Equal(t, config.DefaultMagicLinkTokenExpiry, c.GetMagicLinkTokenExpiry())
	require.Equal(t, config.DefaultRefreshTokenExpiry, c.GetRefreshTokenExpiry())
	require.Equal(t, config.DefaultStoreTimeout, c.GetStoreTimeout())
	require.Equal(t, config.DefaultMailTimeout, c.GetMailTimeout())
}

func TestLoad_MailTimeout(t *testing.T) {
	t.Setenv("TOKEN_MASTER_SECRET", "master")
	t.Setenv("MAIL_TIMEOUT", "12s")

	c, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 12*time.Second, c.GetMailTimeout())

	t.Setenv("MAIL_TIMEOUT", "soon")
	_, err = config.Load()
	require.ErrorIs(t, err, errors.ErrConfig)
}

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Setenv("TOKEN_MASTER_SECRET", "")
	t.Setenv("MAGIC_LINK_TOKEN_SECRET", "a")
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "c")

	_, err := config.Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrConfig))
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("TOKEN_MASTER_SECRET", "master")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "soon")

	_, err := config.Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrConfig))
}

func TestLoad_StoreBackendRequirements(t *testing.T) {
	t.Setenv("TOKEN_MASTER_SECRET", "master")

	t.Run("postgres needs DATABASE_URL", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "postgres")
		t.Setenv("DATABASE_URL", "")
		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "redis")
		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("hasura", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "hasura")
		t.Setenv("HASURA_URL", "http://localhost:8081/v1/graphql")
		c, err := config.Load()
		require.NoError(t, err)
		require.Equal(t, config.StoreBackendHasura, c.GetStoreBackend())
	})
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("TOKEN_MASTER_SECRET", "")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "")
	// godotenv never overrides variables already present, so unset the ones the file sets.
	require.NoError(t, os.Unsetenv("TOKEN_MASTER_SECRET"))
	require.NoError(t, os.Unsetenv("REFRESH_TOKEN_EXPIRY"))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TOKEN_MASTER_SECRET=from-file\nREFRESH_TOKEN_EXPIRY=48h\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("TOKEN_MASTER_SECRET")
		_ = os.Unsetenv("REFRESH_TOKEN_EXPIRY")
	})

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", c.GetMasterTokenSecret())
	require.Equal(t, 48*time.Hour, c.GetRefreshTokenExpiry())
}

func TestParseAllowedOrigins(t *testing.T) {
	origins := config.ParseAllowedOrigins(" https://a.example.com ,https://b.example.com,, ")
	require.True(t, origins.IsAllowedOrigin("https://a.example.com"))
	require.True(t, origins.IsAllowedOrigin("https://b.example.com"))
	require.False(t, origins.IsAllowedOrigin(""))
	require.Equal(t, "https://a.example.com, https://b.example.com", origins.String())
}
