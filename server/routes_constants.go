package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Magic link dispatch
	RouteLogin              = "/login"
	RouteCreateClient       = "/create-client"
	RouteInvitePractitioner = "/invite-practitioner"

	// Session lifecycle
	RouteSession       = "/session"
	RouteRefreshTokens = "/refresh-tokens"
	RouteRevokeTokens  = "/revoke-tokens"

	// Operational
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
