package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-magic-auth/auth"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

const (
	msgInvalidEmail     = "a valid email is required"
	msgEmailExists      = "a user with this email already exists"
	msgCannotSendEmail  = "cannot send email"
	msgUserNotFound     = "user not found"
	msgTokenInvalid     = "token is invalid"
	msgSessionCreated   = "user session created"
	msgRefreshInvalid   = "refresh token is invalid"
	msgCannotRefresh    = "unable to create new tokens"
	msgRefreshRequired  = "refresh token is required"
	msgTokensRevoked    = "user tokens revoked"
	msgCannotLogOut     = "unable to log user out"
	msgCannotCreateUser = "unable to create a new user"
)

type emailRequest struct {
	Email string `json:"email"`
}

type createClientRequest struct {
	User *struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"user"`
}

type sessionRequest struct {
	Token string `json:"token"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func emailSent(result *auth.DispatchResult) string {
	return fmt.Sprintf("email to %s was successfully sent", result.Email)
}

// Login emails a magic link to an existing user.
func (s *Server) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		result, err := s.sessions.Login(r.Context(), req.Email)
		if err != nil {
			email := strings.ToLower(strings.TrimSpace(req.Email))
			s.writeFlowError(w, r, err, msgCannotSendEmail,
				errorMapping{errors.ErrValidation, http.StatusBadRequest, msgInvalidEmail},
				errorMapping{errors.ErrNotFound, http.StatusNotFound, fmt.Sprintf("user with email %s does not exist", email)},
			)
			return
		}
		writeJSONSuccess(w, emailSent(result))
	}
}

// CreateClient registers a client user and emails them a magic link.
func (s *Server) CreateClient() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createClientRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if req.User == nil {
			writeJSONError(w, http.StatusBadRequest, msgInvalidEmail)
			return
		}

		result, err := s.sessions.CreateClient(r.Context(), auth.NewClient{
			Email:     req.User.Email,
			FirstName: req.User.FirstName,
			LastName:  req.User.LastName,
		})
		if err != nil {
			s.writeDispatchError(w, r, err)
			return
		}
		writeJSONSuccess(w, emailSent(result))
	}
}

// InvitePractitioner registers a practitioner and emails them a magic link.
func (s *Server) InvitePractitioner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		result, err := s.sessions.InvitePractitioner(r.Context(), req.Email)
		if err != nil {
			s.writeDispatchError(w, r, err)
			return
		}
		writeJSONSuccess(w, emailSent(result))
	}
}

func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeFlowError(w, r, err, msgCannotCreateUser,
		errorMapping{errors.ErrValidation, http.StatusBadRequest, msgInvalidEmail},
		errorMapping{errors.ErrConflict, http.StatusConflict, msgEmailExists},
		errorMapping{errors.ErrDelivery, http.StatusInternalServerError, msgCannotSendEmail},
	)
}

// Session exchanges a magic-link token for an access and refresh token pair.
func (s *Server) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		pair, err := s.sessions.EstablishSession(r.Context(), req.Token)
		if err != nil {
			s.writeFlowError(w, r, err, msgInternalError,
				errorMapping{errors.ErrTokenInvalid, http.StatusUnauthorized, msgTokenInvalid},
				errorMapping{errors.ErrNotFound, http.StatusNotFound, msgUserNotFound},
			)
			return
		}
		writeTokens(w, sessionResponse{
			Status:       statusSuccess,
			Message:      msgSessionCreated,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}

// RefreshTokens rotates a still-current refresh token into a fresh pair.
func (s *Server) RefreshTokens() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshTokenRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		pair, err := s.sessions.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			s.writeFlowError(w, r, err, msgInternalError,
				errorMapping{auth.ErrRefreshSuperseded, http.StatusForbidden, msgCannotRefresh},
				errorMapping{errors.ErrTokenInvalid, http.StatusForbidden, msgRefreshInvalid},
			)
			return
		}
		writeTokens(w, tokenPairResponse{
			RefreshToken: pair.RefreshToken,
			AccessToken:  pair.AccessToken,
		})
	}
}

// RevokeTokens invalidates every refresh token issued to the token's user.
func (s *Server) RevokeTokens() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshTokenRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		if err := s.sessions.Revoke(r.Context(), req.RefreshToken); err != nil {
			s.writeFlowError(w, r, err, msgCannotLogOut,
				errorMapping{errors.ErrValidation, http.StatusBadRequest, msgRefreshRequired},
				errorMapping{errors.ErrTokenInvalid, http.StatusNotFound, msgCannotLogOut},
				errorMapping{errors.ErrNotFound, http.StatusNotFound, msgCannotLogOut},
			)
			return
		}
		writeJSONSuccess(w, msgTokensRevoked)
	}
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Message: "ok"})
	}
}
