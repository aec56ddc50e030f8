package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/identity"
	"github.com/jrsteele09/go-portal-server/internal/config"
	"github.com/jrsteele09/go-portal-server/resources"
	"github.com/jrsteele09/go-portal-server/server/authflowrepo"
	"github.com/jrsteele09/go-portal-server/server/workspace"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/rs/zerolog/log"
)

// IdentityProvider runs the browser side of the Google login.
type IdentityProvider interface {
	AuthCodeURL(ctx context.Context, state, nonce, verifier string) (string, error)
	Exchange(ctx context.Context, code, verifier string) (string, error)
	Verify(ctx context.Context, rawIDToken, nonce string) (*identity.Assertion, error)
}

// SessionEvaluator moves a Session Token forward on every read.
type SessionEvaluator interface {
	Evaluate(ctx context.Context, prev token.Token, assertion *identity.Assertion) token.Token
}

// API is the backend surface the request handlers call directly.
type API interface {
	resources.Doer
	CurrentUser(ctx context.Context, access string) (*backend.User, error)
}

type Dependencies struct {
	Provider  IdentityProvider
	Sessions  SessionEvaluator
	API       API
	AuthFlows authflowrepo.Repo
	Revoked   token.RevokedSessionCache
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	handler http.HandlerFunc
	routes  []string
	config  config.Config

	provider   IdentityProvider
	sessions   SessionEvaluator
	api        API
	authFlows  authflowrepo.Repo
	revoked    token.RevokedSessionCache
	workspaces *workspace.Registry

	signer  *token.HMACSigner
	flowKey []byte
	nowFunc func() time.Time

	loginTemplate *template.Template
	indexTemplate *template.Template
}

type Option func(*Server)

// WithNowFunc overrides the clock for cookie issuance and validation.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func New(cfg config.Config, deps Dependencies, opts ...Option) (*Server, error) {
	if deps.Provider == nil || deps.Sessions == nil || deps.API == nil || deps.AuthFlows == nil || deps.Revoked == nil {
		return nil, fmt.Errorf("[Server New] missing dependency")
	}

	cookieKey, err := token.DeriveKey(cfg.GetSessionSecret(), token.PurposeSessionCookie)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to derive cookie key: %w", err)
	}
	flowKey, err := token.DeriveKey(cfg.GetSessionSecret(), token.PurposeFlowState)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to derive flow key: %w", err)
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		provider:  deps.Provider,
		sessions:  deps.Sessions,
		api:       deps.API,
		authFlows: deps.AuthFlows,
		revoked:   deps.Revoked,
		flowKey:   flowKey,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.signer = token.NewHMACSigner(cookieKey, cfg.GetSessionMaxAge(), token.WithSignerNowFunc(s.nowFunc))
	s.workspaces = workspace.NewRegistry(deps.API, sessionTokens{}, loginNavigator{}, workspace.WithNowFunc(s.nowFunc))

	pages, err := parsePages("login.html", "index.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	s.loginTemplate, s.indexTemplate = pages["login.html"], pages["index.html"]

	s.initRoutes()
	s.logRoutes()

	// Every request reads the session and passes the gate before routing.
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.RecoverMiddleware, s.SessionMiddleware, s.AuthorizationGate)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

// Workspaces exposes the per-session store registry so the caller can prune it.
func (s *Server) Workspaces() *workspace.Registry {
	return s.workspaces
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
		return
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
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path string, err error) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+err.Error()+ResetColor)
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
