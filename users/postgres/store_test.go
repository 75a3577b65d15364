package postgres_test

import (
	"testing"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/users/postgres"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresPool(t *testing.T) {
	_, err := postgres.New(nil)
	require.ErrorIs(t, err, errors.ErrConfig)
}
