// Package hasura implements users.IdentityStore against a Hasura GraphQL endpoint.
package hasura

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/users"
)

const (
	adminSecretHeader = "x-hasura-admin-secret"
	maxResponseBytes  = 1 << 20
)

var _ users.IdentityStore = (*Store)(nil)

type Store struct {
	endpoint    string
	adminSecret string
	client      *http.Client
}

type Option func(*Store)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		s.client = client
	}
}

// WithTimeout bounds every GraphQL round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.client = &http.Client{Timeout: timeout}
	}
}

func New(endpoint, adminSecret string, options ...Option) (*Store, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.Wrapf(errors.ErrConfig, "[hasura.New] endpoint is required")
	}
	s := &Store{
		endpoint:    endpoint,
		adminSecret: adminSecret,
		client:      http.DefaultClient,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

type hasuraScope struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type hasuraUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	FirstVisit   bool   `json:"first_visit"`
	TokenVersion int    `json:"token_version"`
	UsersScopes  []struct {
		Scope hasuraScope `json:"scope"`
	} `json:"users_scopes"`
	Practitioners []struct {
		SetupComplete bool `json:"setup_complete"`
	} `json:"practitioners"`
}

func (h hasuraUser) toUser() *users.User {
	u := &users.User{
		ID:           h.ID,
		Email:        h.Email,
		FirstName:    h.FirstName,
		LastName:     h.LastName,
		FirstVisit:   h.FirstVisit,
		TokenVersion: h.TokenVersion,
		Scopes:       make([]users.Scope, 0, len(h.UsersScopes)),
	}
	for _, us := range h.UsersScopes {
		u.Scopes = append(u.Scopes, users.Scope{ID: us.Scope.ID, Name: us.Scope.Name})
	}
	if len(h.Practitioners) > 0 {
		u.Practitioner = &users.PractitionerProfile{SetupComplete: h.Practitioners[0].SetupComplete}
	}
	return u
}

func firstUser(list []hasuraUser) *users.User {
	if len(list) == 0 {
		return nil
	}
	return list[0].toUser()
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	var data struct {
		Users []hasuraUser `json:"h3_users"`
	}
	if err := s.do(ctx, "GetUserByEmail", getUserByEmail, map[string]any{"email": users.NormalizeEmail(email)}, &data); err != nil {
		return nil, err
	}
	return firstUser(data.Users), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	var data struct {
		Users []hasuraUser `json:"h3_users"`
	}
	if err := s.do(ctx, "GetUserById", getUserByID, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	return firstUser(data.Users), nil
}

func (s *Store) CreateUser(ctx context.Context, newUser users.NewUser, scopeID string) (*users.User, error) {
	query, op := insertClient, "InsertClient"
	if newUser.Practitioner {
		query, op = insertPractitioner, "InsertPractitioner"
	}

	var data struct {
		Insert struct {
			Returning []hasuraUser `json:"returning"`
		} `json:"insert_h3_users"`
	}
	err := s.do(ctx, op, query, map[string]any{
		"email":     users.NormalizeEmail(newUser.Email),
		"firstName": newUser.FirstName,
		"lastName":  newUser.LastName,
		"scopeId":   scopeID,
	}, &data)
	if err != nil {
		return nil, err
	}

	u := firstUser(data.Insert.Returning)
	if u == nil {
		return nil, errors.Wrapf(errors.ErrStore, "[Store.CreateUser] user not created")
	}
	return u, nil
}

func (s *Store) IncrementTokenVersion(ctx context.Context, id string, current int) (*users.User, error) {
	var data struct {
		Update struct {
			AffectedRows int          `json:"affected_rows"`
			Returning    []hasuraUser `json:"returning"`
		} `json:"update_h3_users"`
	}
	if err := s.do(ctx, "IncrementTokenVersion", incrementTokenVersion, map[string]any{"id": id, "current": current}, &data); err != nil {
		return nil, err
	}

	if u := firstUser(data.Update.Returning); u != nil {
		return u, nil
	}

	existing, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "user %s", id)
	}
	return nil, errors.Wrapf(errors.ErrVersionConflict, "user %s at version %d, expected %d", id, existing.TokenVersion, current)
}

func (s *Store) GetScopeIDByName(ctx context.Context, name string) (*users.Scope, error) {
	var data struct {
		Scopes []hasuraScope `json:"h3_scopes"`
	}
	if err := s.do(ctx, "GetScopeIdByName", getScopeIDByName, map[string]any{"scopeName": name}, &data); err != nil {
		return nil, err
	}
	if len(data.Scopes) == 0 {
		return nil, nil
	}
	return &users.Scope{ID: data.Scopes[0].ID, Name: data.Scopes[0].Name}, nil
}

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// do posts one GraphQL operation and decodes its data into out. GraphQL errors map to
// ErrConflict for uniqueness violations and ErrStore otherwise.
func (s *Store) do(ctx context.Context, op, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{OperationName: op, Query: query, Variables: variables})
	if err != nil {
		return errors.Mark(err, errors.ErrStore, "[hasura.%s] encoding request", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Mark(err, errors.ErrStore, "[hasura.%s] building request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.adminSecret != "" {
		req.Header.Set(adminSecretHeader, s.adminSecret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Mark(err, errors.ErrStore, "[hasura.%s]", op)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Mark(err, errors.ErrStore, "[hasura.%s] reading response", op)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(errors.ErrStore, "[hasura.%s] unexpected status %d", op, resp.StatusCode)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return errors.Mark(err, errors.ErrStore, "[hasura.%s] decoding response", op)
	}
	if len(gqlResp.Errors) > 0 {
		return classifyErrors(op, gqlResp.Errors)
	}
	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return errors.Wrapf(errors.ErrStore, "[hasura.%s] empty data", op)
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return errors.Mark(err, errors.ErrStore, "[hasura.%s] decoding data", op)
	}
	return nil
}

func classifyErrors(op string, gqlErrors []graphqlError) error {
	messages := make([]string, 0, len(gqlErrors))
	for _, e := range gqlErrors {
		if e.Extensions.Code == "constraint-violation" && strings.Contains(strings.ToLower(e.Message), "uniqueness violation") {
			return errors.Wrapf(errors.ErrConflict, "[hasura.%s] %s", op, e.Message)
		}
		messages = append(messages, e.Message)
	}
	return errors.Wrapf(errors.ErrStore, "[hasura.%s] %s", op, strings.Join(messages, "; "))
}
