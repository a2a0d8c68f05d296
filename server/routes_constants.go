package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes
	RouteAuthSignup    = "/auth/signup"
	RouteAuthLogin     = "/auth/login"
	RouteAuthMagicLink = "/auth/magic-link"
	RouteAuthCallback  = "/auth/callback"
	RouteAuthSession   = "/auth/session"
	RouteAuthRefresh   = "/auth/refresh"
	RouteAuthPassword  = "/auth/password"
	RouteAuthLogout    = "/auth/logout"

	// Handoff
	RouteHandoff = "/handoff"

	// API Routes
	RouteAPISession = "/api/session"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)
