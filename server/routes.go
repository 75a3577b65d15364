package server

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.router.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.CorsMiddleware,
	)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Magic link dispatch
	s.registerRoute(http.MethodPost, RouteLogin, s.Login())
	s.registerRoute(http.MethodPost, RouteCreateClient, s.CreateClient())
	s.registerRoute(http.MethodPost, RouteInvitePractitioner, s.InvitePractitioner())

	// Session lifecycle
	s.registerRoute(http.MethodPost, RouteSession, s.Session())
	s.registerRoute(http.MethodPost, RouteRefreshTokens, s.RefreshTokens())
	s.registerRoute(http.MethodPost, RouteRevokeTokens, s.RevokeTokens())

	// Operational
	s.registerRoute(http.MethodGet, RouteHealth, s.Health())
	if s.gatherer != nil {
		s.registerHandler(http.MethodGet, RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}
