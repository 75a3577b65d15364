//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/users"
	"github.com/jrsteele09/go-magic-auth/users/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Run with: go test -tags integration ./users/postgres/...
// Requires a Docker daemon.

func setupPostgresContainer(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("magicauth"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newMigratedStore(t *testing.T) *postgres.Store {
	t.Helper()
	store, err := postgres.New(setupPostgresContainer(t))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	// Migrate is idempotent.
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStore_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	store := newMigratedStore(t)

	scope, err := store.GetScopeIDByName(ctx, users.ScopeClient)
	require.NoError(t, err)
	require.NotNil(t, scope)

	missingScope, err := store.GetScopeIDByName(ctx, "admin")
	require.NoError(t, err)
	require.Nil(t, missingScope)

	created, err := store.CreateUser(ctx, users.NewUser{Email: "A@B.com", FirstName: "Ada", LastName: "Lovelace"}, scope.ID)
	require.NoError(t, err)
	require.Len(t, created.ID, 26)
	require.Equal(t, "a@b.com", created.Email)
	require.Equal(t, 0, created.TokenVersion)
	require.True(t, created.FirstVisit)
	require.Equal(t, []string{users.ScopeClient}, created.ScopeNames())
	require.Nil(t, created.SetupComplete())

	byEmail, err := store.GetUserByEmail(ctx, "a@b.COM")
	require.NoError(t, err)
	require.Equal(t, created, byEmail)

	missing, err := store.GetUserByEmail(ctx, "nobody@b.com")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = store.CreateUser(ctx, users.NewUser{Email: "a@b.com"}, scope.ID)
	require.ErrorIs(t, err, errors.ErrConflict)

	_, err = store.CreateUser(ctx, users.NewUser{Email: "c@d.com"}, "no-such-scope")
	require.ErrorIs(t, err, errors.ErrStore)

	updated, err := store.IncrementTokenVersion(ctx, created.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, updated.TokenVersion)

	_, err = store.IncrementTokenVersion(ctx, created.ID, 0)
	require.ErrorIs(t, err, errors.ErrVersionConflict)

	_, err = store.IncrementTokenVersion(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", 0)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStore_Practitioner(t *testing.T) {
	ctx := context.Background()
	store := newMigratedStore(t)

	scope, err := store.GetScopeIDByName(ctx, users.ScopePractitioner)
	require.NoError(t, err)

	u, err := store.CreateUser(ctx, users.NewUser{Email: "doc@b.com", Practitioner: true}, scope.ID)
	require.NoError(t, err)
	require.NotNil(t, u.SetupComplete())
	require.False(t, *u.SetupComplete())
	require.True(t, u.HasScope(users.ScopePractitioner))
}

func TestStore_ConcurrentIncrementLandsOnce(t *testing.T) {
	ctx := context.Background()
	store := newMigratedStore(t)

	scope, err := store.GetScopeIDByName(ctx, users.ScopeClient)
	require.NoError(t, err)
	u, err := store.CreateUser(ctx, users.NewUser{Email: "race@b.com"}, scope.ID)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementTokenVersion(ctx, u.ID, 0); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, succeeded)

	stored, err := store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.TokenVersion)
}
