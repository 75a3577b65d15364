package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxBodyBytes    = 64 << 10

	statusSuccess = "success"
	statusError   = "error"

	msgInvalidBody   = "request body must be valid JSON"
	msgInternalError = "internal server error"
)

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type sessionResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	RefreshToken string `json:"refreshToken"`
	AccessToken  string `json:"accessToken"`
}

// errorMapping turns a sentinel into a client-facing status and message. The first match wins,
// so refinements go before their parent sentinel.
type errorMapping struct {
	target  error
	status  int
	message string
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeTokens is writeJSON for bodies that carry credentials.
func writeTokens(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, body)
}

func writeJSONSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Message: message})
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Status: statusError, Message: message})
}

// writeFlowError answers with the first mapping whose target matches err. Unmapped errors are
// logged and reported as a 500 with fallback as the message.
func (s *Server) writeFlowError(w http.ResponseWriter, r *http.Request, err error, fallback string, mappings ...errorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			writeJSONError(w, m.status, m.message)
			return
		}
	}
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSONError(w, http.StatusInternalServerError, fallback)
}

// decodeBody reads a single JSON document of at most maxBodyBytes into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.Wrapf(errors.ErrValidation, "decoding body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.Wrapf(errors.ErrValidation, "body must hold a single JSON value")
	}
	return nil
}
