package server

import (
	"log"
	"net/http"
	"strings"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthSignup, ChainMiddleware(s.SignupHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthMagicLink, ChainMiddleware(s.MagicLinkHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.AuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthSession, ChainMiddleware(s.FragmentSessionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthPassword, ChainMiddleware(s.PasswordHandler(), s.HTMLMiddleWare(s.RequireSession())...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// HANDOFF
	s.RegisterRouteHandler("POST "+RouteHandoff, ChainMiddleware(s.HandoffHandler(), s.HTMLMiddleWare()...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionAPIHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(s.SessionAPIHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteStaticJS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func logError(method, path, error string) {
	errorString := Red + error + ResetColor
	log.Printf("[%-19s] %s %s\n", colouredMethod(method), path, errorString)
}
