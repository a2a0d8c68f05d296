package server

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-handoff/handoff"
	"github.com/jrsteele09/go-token-handoff/identity"
	"github.com/jrsteele09/go-token-handoff/internal/config"
	"github.com/jrsteele09/go-token-handoff/server/flowstate"
	"github.com/jrsteele09/go-token-handoff/server/slots"
	"github.com/jrsteele09/go-token-handoff/token"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	provider  identity.Provider
	flows     flowstate.Repo
	slots     *slots.Store
	resolver  *handoff.Resolver
	inspector *token.Inspector
	page      *template.Template
	now       func() time.Time
}

func New(config config.Config, provider identity.Provider, flows flowstate.Repo, inspector *token.Inspector) (*Server, error) {
	secret := config.GetCookieSecret()
	if secret == "" {
		return nil, fmt.Errorf("[Server New] COOKIE_SECRET is required outside DEV")
	}
	sealer, err := slots.NewSealer(secret)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create cookie sealer: %w", err)
	}

	page, err := ParseTemplate("index.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse index template: %w", err)
	}

	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    config,
		provider:  provider,
		flows:     flows,
		slots:     slots.NewStore(sealer, config.GetTokenSlotMaxAge(), config.GetFlowCookieMaxAge()),
		resolver:  handoff.NewResolver(config.GetReturnAllowlist()...),
		inspector: inspector,
		page:      page,
		now:       time.Now,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Printf("[%-19s] %s\n", colouredMethod(method), path)
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
