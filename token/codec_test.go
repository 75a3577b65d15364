package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/internal/utils"
	"github.com/jrsteele09/go-magic-auth/token"
	"github.com/stretchr/testify/require"
)

const (
	magicLinkSecret = "magic-link-secret-for-tests"
	accessSecret    = "access-secret-for-tests"
	refreshSecret   = "refresh-secret-for-tests"
	testIssuer      = "magic-auth-test"
	testUserID      = "user-1"
	testUserEmail   = "a@b.com"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func testTokenConfig() config.Tokens {
	return config.Tokens{
		MagicLinkSecret: magicLinkSecret,
		AccessSecret:    accessSecret,
		RefreshSecret:   refreshSecret,
		Issuer:          testIssuer,
	}
}

func newTestCodec(t *testing.T, cfg config.Tokens, clock *testClock) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(cfg, token.WithNowFunc(clock.Now))
	require.NoError(t, err)
	return codec
}

// signMapClaims hand-signs arbitrary claims so tests can build tokens the codec never would.
func signMapClaims(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func magicLinkMapClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"typ":   "magic_link",
		"id":    testUserID,
		"email": testUserEmail,
		"iss":   testIssuer,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Minute).Unix(),
	}
}

func TestCodec_MagicLinkRoundTrip(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	raw, err := codec.CreateMagicLinkToken(testUserID, testUserEmail)
	require.NoError(t, err)

	claims, err := codec.VerifyMagicLinkToken(raw)
	require.NoError(t, err)
	require.Equal(t, token.KindMagicLink, claims.Kind)
	require.Equal(t, testUserID, claims.UserID)
	require.Equal(t, testUserEmail, claims.Email)
	require.Equal(t, testIssuer, claims.Issuer)
	require.Equal(t, clock.now.Add(config.DefaultMagicLinkTokenExpiry).Unix(), claims.ExpiresAt.Unix())
	require.Equal(t, config.DefaultMagicLinkTokenExpiry, codec.MagicLinkTokenExpiry())
}

func TestCodec_MagicLinkIsDeterministic(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	first, err := codec.CreateMagicLinkToken(testUserID, testUserEmail)
	require.NoError(t, err)
	second, err := codec.CreateMagicLinkToken(testUserID, testUserEmail)
	require.NoError(t, err)
	require.Equal(t, first, second)

	clock.Advance(time.Second)
	third, err := codec.CreateMagicLinkToken(testUserID, testUserEmail)
	require.NoError(t, err)
	require.NotEqual(t, first, third)
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	t.Run("practitioner profile", func(t *testing.T) {
		raw, err := codec.CreateAccessToken(token.AccessTokenInput{
			UserID:        testUserID,
			Email:         testUserEmail,
			FirstName:     "Ada",
			LastName:      "Lovelace",
			FirstVisit:    true,
			SetupComplete: utils.Ptr(false),
			Scopes:        []string{"practitioner"},
		})
		require.NoError(t, err)

		claims, err := codec.VerifyAccessToken(raw)
		require.NoError(t, err)
		require.Equal(t, token.KindAccess, claims.Kind)
		require.Equal(t, "Ada", claims.FirstName)
		require.Equal(t, "Lovelace", claims.LastName)
		require.True(t, claims.FirstVisit)
		require.NotNil(t, claims.SetupComplete)
		require.False(t, *claims.SetupComplete)
		require.Equal(t, []string{"practitioner"}, claims.Scopes)
	})

	t.Run("no practitioner profile and no scopes", func(t *testing.T) {
		raw, err := codec.CreateAccessToken(token.AccessTokenInput{
			UserID: testUserID,
			Email:  testUserEmail,
		})
		require.NoError(t, err)

		claims, err := codec.VerifyAccessToken(raw)
		require.NoError(t, err)
		require.Nil(t, claims.SetupComplete)
		require.NotNil(t, claims.Scopes)
		require.Empty(t, claims.Scopes)
	})
}

func TestCodec_RefreshRoundTrip(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	raw, err := codec.CreateRefreshToken(testUserID, 3)
	require.NoError(t, err)

	claims, err := codec.VerifyRefreshToken(raw)
	require.NoError(t, err)
	require.Equal(t, token.KindRefresh, claims.Kind)
	require.Equal(t, testUserID, claims.UserID)
	require.Equal(t, 3, claims.TokenVersion)
	require.Equal(t, clock.now.Add(config.DefaultRefreshTokenExpiry).Unix(), claims.ExpiresAt.Unix())
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	clock := newTestClock()
	cfg := testTokenConfig()
	cfg.MagicLinkExpiry = 10 * time.Minute
	codec := newTestCodec(t, cfg, clock)

	raw, err := codec.CreateMagicLinkToken(testUserID, testUserEmail)
	require.NoError(t, err)

	clock.Advance(10*time.Minute - time.Second)
	_, err = codec.VerifyMagicLinkToken(raw)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = codec.VerifyMagicLinkToken(raw)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
}

func TestCodec_RejectsTokenIssuedInTheFuture(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	raw := signMapClaims(t, magicLinkSecret, magicLinkMapClaims(clock.now.Add(time.Hour)))
	_, err := codec.VerifyMagicLinkToken(raw)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
}

func TestCodec_AnySingleCharacterChangeIsRejected(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	raw, err := codec.CreateMagicLinkToken(testUserID, testUserEmail)
	require.NoError(t, err)

	for i := range raw {
		replacement := byte('A')
		if raw[i] == replacement {
			replacement = 'B'
		}
		tampered := raw[:i] + string(replacement) + raw[i+1:]

		_, err := codec.VerifyMagicLinkToken(tampered)
		require.ErrorIs(t, err, errors.ErrTokenInvalid, "position %d", i)
	}
}

func TestCodec_KindsAreNotInterchangeable(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	magicLink, err := codec.CreateMagicLinkToken(testUserID, testUserEmail)
	require.NoError(t, err)
	access, err := codec.CreateAccessToken(token.AccessTokenInput{UserID: testUserID, Email: testUserEmail})
	require.NoError(t, err)
	refresh, err := codec.CreateRefreshToken(testUserID, 0)
	require.NoError(t, err)

	_, err = codec.VerifyAccessToken(magicLink)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
	_, err = codec.VerifyRefreshToken(magicLink)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)

	_, err = codec.VerifyMagicLinkToken(access)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
	_, err = codec.VerifyRefreshToken(access)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)

	_, err = codec.VerifyMagicLinkToken(refresh)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
	_, err = codec.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, errors.ErrTokenInvalid)

	// Correct key, wrong typ claim.
	claims := magicLinkMapClaims(clock.now)
	claims["typ"] = "access"
	_, err = codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, claims))
	require.ErrorIs(t, err, errors.ErrTokenInvalid)
}

func TestCodec_ClaimSetMustMatchExactly(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	t.Run("hand-signed valid claims are accepted", func(t *testing.T) {
		claims, err := codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, magicLinkMapClaims(clock.now)))
		require.NoError(t, err)
		require.Equal(t, testUserEmail, claims.Email)
	})

	t.Run("extra claim", func(t *testing.T) {
		claims := magicLinkMapClaims(clock.now)
		claims["admin"] = true
		_, err := codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, claims))
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("missing claim", func(t *testing.T) {
		claims := magicLinkMapClaims(clock.now)
		delete(claims, "email")
		_, err := codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, claims))
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := magicLinkMapClaims(clock.now)
		delete(claims, "exp")
		_, err := codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, claims))
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("null claim", func(t *testing.T) {
		claims := magicLinkMapClaims(clock.now)
		claims["email"] = nil
		_, err := codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, claims))
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("empty user id", func(t *testing.T) {
		claims := magicLinkMapClaims(clock.now)
		claims["id"] = ""
		_, err := codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, claims))
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := magicLinkMapClaims(clock.now)
		claims["iss"] = "someone-else"
		_, err := codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, claims))
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("null setupComplete is allowed on access tokens", func(t *testing.T) {
		claims := jwt.MapClaims{
			"typ":           "access",
			"id":            testUserID,
			"email":         testUserEmail,
			"firstName":     "",
			"lastName":      "",
			"firstVisit":    false,
			"setupComplete": nil,
			"scopes":        []string{},
			"iss":           testIssuer,
			"iat":           clock.now.Unix(),
			"exp":           clock.now.Add(time.Minute).Unix(),
		}
		verified, err := codec.VerifyAccessToken(signMapClaims(t, accessSecret, claims))
		require.NoError(t, err)
		require.Nil(t, verified.SetupComplete)
	})

	t.Run("negative token version", func(t *testing.T) {
		claims := jwt.MapClaims{
			"typ":          "refresh",
			"id":           testUserID,
			"tokenVersion": -1,
			"iss":          testIssuer,
			"iat":          clock.now.Unix(),
			"exp":          clock.now.Add(time.Minute).Unix(),
		}
		_, err := codec.VerifyRefreshToken(signMapClaims(t, refreshSecret, claims))
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, testTokenConfig(), clock)

	t.Run("none", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, magicLinkMapClaims(clock.now)).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = codec.VerifyMagicLinkToken(raw)
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("HS512 with the right secret", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, magicLinkMapClaims(clock.now)).
			SignedString([]byte(magicLinkSecret))
		require.NoError(t, err)
		_, err = codec.VerifyMagicLinkToken(raw)
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})
}

func TestCodec_RejectsGarbage(t *testing.T) {
	codec := newTestCodec(t, testTokenConfig(), newTestClock())

	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c", "a.b"} {
		_, err := codec.VerifyMagicLinkToken(raw)
		require.ErrorIs(t, err, errors.ErrTokenInvalid, raw)
	}
}

func TestNewCodec_Secrets(t *testing.T) {
	clock := newTestClock()

	t.Run("derived from master secret", func(t *testing.T) {
		cfg := config.Tokens{MasterSecret: "a-single-master-secret", Issuer: testIssuer}
		codec := newTestCodec(t, cfg, clock)

		magicLink, err := codec.CreateMagicLinkToken(testUserID, testUserEmail)
		require.NoError(t, err)
		_, err = codec.VerifyMagicLinkToken(magicLink)
		require.NoError(t, err)

		// The master secret itself never signs tokens.
		_, err = codec.VerifyMagicLinkToken(signMapClaims(t, cfg.MasterSecret, magicLinkMapClaims(clock.now)))
		require.ErrorIs(t, err, errors.ErrTokenInvalid)

		// Another instance with the same master secret accepts the token.
		other := newTestCodec(t, cfg, clock)
		_, err = other.VerifyMagicLinkToken(magicLink)
		require.NoError(t, err)

		// A different master secret does not.
		cfg.MasterSecret = "a-different-master-secret"
		different := newTestCodec(t, cfg, clock)
		_, err = different.VerifyMagicLinkToken(magicLink)
		require.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("explicit secret wins over master", func(t *testing.T) {
		cfg := config.Tokens{MasterSecret: "master", MagicLinkSecret: magicLinkSecret, Issuer: testIssuer}
		codec := newTestCodec(t, cfg, clock)

		_, err := codec.VerifyMagicLinkToken(signMapClaims(t, magicLinkSecret, magicLinkMapClaims(clock.now)))
		require.NoError(t, err)
	})

	t.Run("equal secrets are a configuration error", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.RefreshSecret = cfg.AccessSecret
		_, err := token.NewCodec(cfg)
		require.ErrorIs(t, err, errors.ErrConfig)
	})

	t.Run("missing secrets are a configuration error", func(t *testing.T) {
		_, err := token.NewCodec(config.Tokens{MagicLinkSecret: magicLinkSecret})
		require.ErrorIs(t, err, errors.ErrConfig)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := token.NewCodec(nil)
		require.ErrorIs(t, err, errors.ErrConfig)
	})
}

func TestCodec_DefaultIssuer(t *testing.T) {
	clock := newTestClock()
	cfg := testTokenConfig()
	cfg.Issuer = ""
	codec := newTestCodec(t, cfg, clock)

	raw, err := codec.CreateRefreshToken(testUserID, 0)
	require.NoError(t, err)
	claims, err := codec.VerifyRefreshToken(raw)
	require.NoError(t, err)
	require.Equal(t, "magic-auth", claims.Issuer)
}
