package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-authority/account"
	"github.com/jrsteele09/go-token-authority/auth"
	"github.com/jrsteele09/go-token-authority/clients"
	"github.com/jrsteele09/go-token-authority/identity"
	"github.com/jrsteele09/go-token-authority/internal/config"
	"github.com/jrsteele09/go-token-authority/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Services are the collaborators the HTTP layer drives. OIDC, Gatherer and HealthCheck are optional.
type Services struct {
	Auth      *auth.AuthorizationService
	Accounts  *account.Service
	Users     users.UserRepo
	Clients   clients.Repo
	Passwords identity.Verifier
	OIDC      identity.Verifier

	Gatherer    prometheus.Gatherer
	HealthCheck func(ctx context.Context) error
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	services Services
	nowTime  func() time.Time
}

type Option func(*Server)

// WithNowTime sets the clock used for last-login timestamps (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, services Services, options ...Option) (*Server, error) {
	if services.Auth == nil {
		return nil, fmt.Errorf("[Server New] authorization service is required")
	}
	if services.Accounts == nil {
		return nil, fmt.Errorf("[Server New] account service is required")
	}
	if services.Users == nil || services.Clients == nil {
		return nil, fmt.Errorf("[Server New] user and client repos are required")
	}
	if services.Passwords == nil {
		return nil, fmt.Errorf("[Server New] password verifier is required")
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		services: services,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	// Bootstrap: ensure the default client exists
	if err := s.InitialiseSystem(context.Background()); err != nil {
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

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			log.Info().Msgf("[%-19s] %s", colourMethod(parts[0]), parts[1])
		} else {
			log.Info().Msgf("[%-19s] %s", colourMethod(""), parts[0])
		}
	}
}
