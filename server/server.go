// Package server is a development stand-in for the Rally auth API: staff and team
// login, token refresh and the "me" endpoints, with FastAPI shaped error bodies.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/rally-session/internal/config"
	"github.com/jrsteele09/rally-session/teams"
	"github.com/jrsteele09/rally-session/token"
	"github.com/jrsteele09/rally-session/token/jwt"
	"github.com/jrsteele09/rally-session/token/keys"
	"github.com/jrsteele09/rally-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Repos holds the account stores the server authenticates against
type Repos struct {
	Users users.UserRepo
	Teams teams.Repo
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	repos   Repos
	creator *jwt.Creator
	tokens  *jwt.Inspector
	revoked token.RevokedTokenCache
	log     zerolog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and startup logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithRevokedTokenCache replaces the in-memory revocation list
func WithRevokedTokenCache(c token.RevokedTokenCache) Option {
	return func(s *Server) {
		s.revoked = c
	}
}

func New(cfg config.Config, repos Repos, opts ...Option) (*Server, error) {
	if repos.Users == nil || repos.Teams == nil {
		return nil, fmt.Errorf("[Server New] user and team repos are required")
	}

	signer, err := keys.NewHMACSigner(cfg.GetIssuer(), cfg.GetSigningSecret())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create token signer: %w", err)
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		repos:   repos,
		creator: jwt.NewCreator(cfg, signer),
		revoked: token.NewInMemoryRevokedTokenCache(),
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tokens = jwt.NewInspector(signer, cfg.GetIssuer(), s.revoked)

	// Seed the admin account and the demo team
	if err := s.InitialiseSystem(cfg); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
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

// Routes returns the registered route patterns
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "*", route
		}
		s.log.Debug().Str("method", method).Str("path", path).Msg("Route registered")
	}
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
