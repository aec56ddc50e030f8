package server

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/internal/httpext"
	"github.com/jrsteele09/go-portal-server/resources"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/rs/zerolog/log"
)

type contextKey int

const (
	sessionContextKey contextKey = iota
	sessionExpiryContextKey
	loginSignalContextKey
)

// loginSignal is raised by a store that wants the user sent to the login page.
// The handler owning the response acts on it.
type loginSignal struct {
	raised atomic.Bool
}

func withSession(ctx context.Context, t token.Token, expires time.Time) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, t)
	return context.WithValue(ctx, sessionExpiryContextKey, expires)
}

// SessionFromContext returns the Session Token read for this request.
func SessionFromContext(ctx context.Context) (token.Token, bool) {
	t, ok := ctx.Value(sessionContextKey).(token.Token)
	return t, ok
}

// sessionExpiry is the exp of the cookie the request's session is carried in.
func sessionExpiry(ctx context.Context) time.Time {
	expires, _ := ctx.Value(sessionExpiryContextKey).(time.Time)
	return expires
}

func withLoginSignal(ctx context.Context) context.Context {
	return context.WithValue(ctx, loginSignalContextKey, &loginSignal{})
}

func loginRequired(ctx context.Context) bool {
	sig, ok := ctx.Value(loginSignalContextKey).(*loginSignal)
	return ok && sig.raised.Load()
}

var (
	_ resources.TokenSource = sessionTokens{}
	_ resources.Navigator   = loginNavigator{}
)

// sessionTokens hands the stores the token of the request they run in.
type sessionTokens struct{}

func (sessionTokens) Session(ctx context.Context) (token.Token, bool) {
	return SessionFromContext(ctx)
}

type loginNavigator struct{}

func (loginNavigator) RedirectToLogin(ctx context.Context) {
	if sig, ok := ctx.Value(loginSignalContextKey).(*loginSignal); ok {
		sig.raised.Store(true)
	}
}

// SessionMiddleware decodes the session cookie, runs the token through the
// refresh orchestration and stores the result in the request context. The cookie
// is only rewritten when the token changed.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := withLoginSignal(r.Context())

		prev, expires, err := s.readSession(r)
		switch {
		case err == nil:
			current := s.sessions.Evaluate(ctx, prev, nil)
			if !current.Equal(prev) {
				if reissued, err := s.SetSessionCookie(w, r, current); err != nil {
					log.Err(err).Str("session_id", current.SessionID).Msg("Failed to re-issue session cookie")
				} else {
					expires = reissued
				}
			}
			ctx = withSession(ctx, current, expires)
		case errors.Is(err, errors.ErrRevocationLookup):
			// Treated as signed out for this request only; the cookie is kept.
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("Session not verified")
		case !errors.Is(err, http.ErrNoCookie):
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Discarding session cookie")
			s.ClearSessionCookie(w, r)
		}

		next(w, r.WithContext(ctx))
	}
}

// AuthorizationGate lets a request through when it carries a session or targets
// an excluded path. Everything else is sent to the login page.
func (s *Server) AuthorizationGate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isGateExcluded(r.URL.Path) {
			next(w, r)
			return
		}
		if _, ok := SessionFromContext(r.Context()); ok {
			next(w, r)
			return
		}
		s.requireLogin(w, r)
	}
}

func isGateExcluded(path string) bool {
	p := strings.TrimPrefix(path, "/")
	for _, excluded := range gateExclusions {
		if strings.HasPrefix(p, excluded) {
			return true
		}
	}
	return false
}

// requireLogin answers in the form the caller can act on: HX-Redirect for htmx,
// a 401 body for API calls, a 303 for pages.
func (s *Server) requireLogin(w http.ResponseWriter, r *http.Request) {
	switch {
	case isHTMXRequest(r) && isAPIRequest(r):
		redirectSuccess(w, r, RouteLogin)
	case isHTMXRequest(r):
		redirectSuccess(w, r, loginURL(r))
	case isAPIRequest(r):
		httpext.JsonErrorWithDetails(w, http.StatusUnauthorized, httpext.ErrorResponse{
			Error:            "unauthenticated",
			ErrorDescription: "login required",
			Redirect:         RouteLogin,
		})
	default:
		http.Redirect(w, r, loginURL(r), http.StatusSeeOther)
	}
}
