package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-magic-auth/auth"
	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sessions is the set of flows the HTTP surface exposes. *auth.SessionService satisfies it.
type Sessions interface {
	InvitePractitioner(ctx context.Context, email string) (*auth.DispatchResult, error)
	CreateClient(ctx context.Context, client auth.NewClient) (*auth.DispatchResult, error)
	Login(ctx context.Context, email string) (*auth.DispatchResult, error)
	EstablishSession(ctx context.Context, magicLinkToken string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
}

var _ Sessions = (*auth.SessionService)(nil)

// Config is the slice of process configuration the server reads.
type Config interface {
	config.EnvConfig
	config.CorsConfig
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   *chi.Mux
	routes   []string
	config   Config
	sessions Sessions
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

type ServerOption func(*Server)

// WithGatherer exposes the given registry on the metrics route. Without it the route is not
// mounted.
func WithGatherer(gatherer prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg Config, sessions Sessions, options ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, errors.Wrapf(errors.ErrConfig, "[Server New] config is required")
	}
	if sessions == nil {
		return nil, errors.Wrapf(errors.ErrConfig, "[Server New] session service is required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		router:   chi.NewRouter(),
		config:   cfg,
		sessions: sessions,
		logger:   log.Logger,
	}
	for _, option := range options {
		option(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Routes returns the registered "METHOD path" patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) registerRoute(method, pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.Method(method, pattern, handler)
}

func (s *Server) registerHandler(method, pattern string, handler http.Handler) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.Method(method, pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}
