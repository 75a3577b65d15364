// Package postgres implements users.IdentityStore over PostgreSQL using pgx.
package postgres

import (
	"context"
	_ "embed"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/users"
)

//go:embed schema.sql
var schemaSQL string

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var _ users.IdentityStore = (*Store)(nil)

// Store is a users.IdentityStore backed by a pgx pool. The pool is owned by the caller.
type Store struct {
	pool    *pgxpool.Pool
	nowFunc func() time.Time
}

type Option func(*Store)

// WithNowFunc overrides the clock used for ULID generation.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func New(pool *pgxpool.Pool, options ...Option) (*Store, error) {
	if pool == nil {
		return nil, errors.Wrapf(errors.ErrConfig, "[postgres.New] nil pool")
	}
	s := &Store{pool: pool, nowFunc: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Connect opens a pool for databaseURL and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrConfig, "[postgres.Connect] parsing database url")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Mark(err, errors.ErrStore, "[postgres.Connect] ping")
	}
	return pool, nil
}

// Migrate creates the tables if needed and seeds the well-known scopes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return errors.Mark(err, errors.ErrStore, "[Store.Migrate] applying schema")
	}
	for _, name := range []string{users.ScopePractitioner, users.ScopeClient} {
		if _, err := s.EnsureScope(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// EnsureScope inserts a scope by name if it does not exist and returns it.
func (s *Store) EnsureScope(ctx context.Context, name string) (*users.Scope, error) {
	id, err := newID(s.nowFunc())
	if err != nil {
		return nil, errors.Mark(err, errors.ErrStore, "[Store.EnsureScope] generating id")
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO scopes (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		id, name,
	); err != nil {
		return nil, errors.Mark(err, errors.ErrStore, "[Store.EnsureScope] %s", name)
	}
	return s.GetScopeIDByName(ctx, name)
}

const selectUser = `
SELECT u.id, u.email, u.first_name, u.last_name, u.first_visit, u.token_version, p.setup_complete
  FROM users u
  LEFT JOIN practitioners p ON p.user_id = u.id
`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	return s.getUser(ctx, selectUser+`WHERE u.email = $1`, users.NormalizeEmail(email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	return s.getUser(ctx, selectUser+`WHERE u.id = $1`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*users.User, error) {
	var (
		u             users.User
		setupComplete *bool
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.FirstVisit, &u.TokenVersion, &setupComplete,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Mark(err, errors.ErrStore, "[Store.getUser]")
	}
	if setupComplete != nil {
		u.Practitioner = &users.PractitionerProfile{SetupComplete: *setupComplete}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.name
		   FROM users_scopes us
		   JOIN scopes s ON s.id = us.scope_id
		  WHERE us.user_id = $1
		  ORDER BY s.name`,
		u.ID,
	)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrStore, "[Store.getUser] scopes")
	}
	u.Scopes, err = pgx.CollectRows(rows, pgx.RowToStructByName[users.Scope])
	if err != nil {
		return nil, errors.Mark(err, errors.ErrStore, "[Store.getUser] scopes")
	}
	return &u, nil
}

// CreateUser inserts the user, its scope association and, for practitioners, an empty
// practitioner profile in one transaction.
func (s *Store) CreateUser(ctx context.Context, newUser users.NewUser, scopeID string) (*users.User, error) {
	now := s.nowFunc()
	id, err := newID(now)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrStore, "[Store.CreateUser] generating id")
	}
	email := users.NormalizeEmail(newUser.Email)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return nil, errors.Mark(err, errors.ErrStore, "[Store.CreateUser] begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (id, email, first_name, last_name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, email, newUser.FirstName, newUser.LastName, now.UTC(),
	); err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return nil, errors.Wrapf(errors.ErrConflict, "user %s", email)
		}
		return nil, errors.Mark(err, errors.ErrStore, "[Store.CreateUser] insert user")
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO users_scopes (user_id, scope_id) VALUES ($1, $2)`,
		id, scopeID,
	); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, errors.Wrapf(errors.ErrStore, "unknown scope id %q", scopeID)
		}
		return nil, errors.Mark(err, errors.ErrStore, "[Store.CreateUser] insert scope")
	}

	if newUser.Practitioner {
		if _, err := tx.Exec(ctx, `INSERT INTO practitioners (user_id) VALUES ($1)`, id); err != nil {
			return nil, errors.Mark(err, errors.ErrStore, "[Store.CreateUser] insert practitioner")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Mark(err, errors.ErrStore, "[Store.CreateUser] commit")
	}
	return s.GetUserByID(ctx, id)
}

// IncrementTokenVersion bumps token_version with a single conditional UPDATE, so two
// concurrent callers holding the same current version cannot both succeed.
func (s *Store) IncrementTokenVersion(ctx context.Context, id string, current int) (*users.User, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET token_version = token_version + 1 WHERE id = $1 AND token_version = $2`,
		id, current,
	)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrStore, "[Store.IncrementTokenVersion]")
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, errors.Mark(err, errors.ErrStore, "[Store.IncrementTokenVersion] exists")
		}
		if !exists {
			return nil, errors.Wrapf(errors.ErrNotFound, "user %s", id)
		}
		return nil, errors.Wrapf(errors.ErrVersionConflict, "user %s expected version %d", id, current)
	}

	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "user %s", id)
	}
	return u, nil
}

func (s *Store) GetScopeIDByName(ctx context.Context, name string) (*users.Scope, error) {
	var scope users.Scope
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM scopes WHERE name = $1`, name).Scan(&scope.ID, &scope.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Mark(err, errors.ErrStore, "[Store.GetScopeIDByName]")
	}
	return &scope, nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return pgErr.Code
}
