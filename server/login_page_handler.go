package server

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/httpext"
	"github.com/jrsteele09/go-portal-server/server/authflowrepo"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Login page error codes, passed as ?error=.
const (
	loginErrorCallback     = "OAuthCallback"
	loginErrorSignIn       = "OAuthSignin"
	loginErrorAccessDenied = "AccessDenied"
	loginErrorSession      = "SessionRequired"
)

var loginErrorMessages = map[string]string{
	loginErrorCallback:     "Google sign-in could not be completed. Please try again.",
	loginErrorSignIn:       "Could not start Google sign-in. Please try again.",
	loginErrorAccessDenied: "Access was denied by Google.",
	loginErrorSession:      "Your session has ended. Please sign in again.",
}

type loginPageData struct {
	AppName     string
	SignInURL   string
	CallbackURL string
	Error       string
}

// signedIn reports whether t can be used against the backend without a new login.
func signedIn(t token.Token, ok bool) bool {
	return ok && t.HasBackendTokens() && !t.RequiresLogin()
}

func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callbackURL := safeReturnURL(r.URL.Query().Get("callbackUrl"))

		if signedIn(SessionFromContext(r.Context())) {
			redirectSuccess(w, r, callbackURL)
			return
		}

		errMsg := ""
		if code := r.URL.Query().Get("error"); code != "" {
			errMsg = loginErrorMessages[code]
			if errMsg == "" {
				errMsg = loginErrorMessages[loginErrorCallback]
			}
		}

		data := loginPageData{
			AppName:     s.config.GetAppName(),
			SignInURL:   RouteSignIn,
			CallbackURL: callbackURL,
			Error:       errMsg,
		}
		s.renderTemplate(w, r, s.loginTemplate, data)
	}
}

// SignInHandler starts the authorization code flow with PKCE and a nonce.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		state, err := generateRandomString(32)
		if err != nil {
			log.Err(err).Msg("Failed to generate auth state")
			redirectWithError(w, r, RouteLogin, loginErrorSignIn)
			return
		}
		nonce, err := generateRandomString(32)
		if err != nil {
			log.Err(err).Msg("Failed to generate auth nonce")
			redirectWithError(w, r, RouteLogin, loginErrorSignIn)
			return
		}
		verifier := oauth2.GenerateVerifier()

		flow := &authflowrepo.AuthFlowState{
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    safeReturnURL(r.FormValue("callbackUrl")),
			CreatedAt:    s.nowFunc(),
		}
		if err := s.authFlows.Upsert(ctx, state, flow); err != nil {
			log.Err(err).Msg("Failed to store auth flow state")
			redirectWithError(w, r, RouteLogin, loginErrorSignIn)
			return
		}

		authURL, err := s.provider.AuthCodeURL(ctx, state, nonce, verifier)
		if err != nil {
			log.Err(err).Msg("Failed to build provider authorization URL")
			_ = s.authFlows.Delete(ctx, state)
			redirectWithError(w, r, RouteLogin, loginErrorSignIn)
			return
		}

		if err := s.setStateCookie(w, r, state); err != nil {
			log.Err(err).Msg("Failed to set state cookie")
			redirectWithError(w, r, RouteLogin, loginErrorSignIn)
			return
		}

		redirectSuccess(w, r, authURL)
	}
}

// SignOutHandler revokes the session until its cookie could no longer be valid,
// drops its workspace and clears the cookie.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t, ok := SessionFromContext(r.Context()); ok {
			s.endSession(r, t)
		}
		s.ClearSessionCookie(w, r)
		redirectSuccess(w, r, RouteLogin)
	}
}

func (s *Server) endSession(r *http.Request, t token.Token) {
	until := s.nowFunc().Add(s.signer.MaxAge())
	if err := s.revoked.Add(r.Context(), t.SessionID, until); err != nil {
		log.Err(err).Str("session_id", t.SessionID).Msg("Failed to revoke session")
	}
	s.workspaces.Delete(t.SessionID)
	log.Info().Str("session_id", t.SessionID).Int64("user_id", t.SubjectID).Msg("Session ended")
}

type sessionUser struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// sessionResponse is the client-visible session. The refresh token stays in the cookie.
type sessionResponse struct {
	User        sessionUser `json:"user"`
	Expires     time.Time   `json:"expires"`
	AccessToken string      `json:"accessToken,omitempty"`
	UserID      int64       `json:"userId,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// SessionHandler returns the current session, or {} when there is none.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		t, ok := SessionFromContext(r.Context())
		if !ok {
			httpext.Json(w, http.StatusOK, struct{}{})
			return
		}
		httpext.Json(w, http.StatusOK, sessionResponse{
			User:        sessionUser{Name: t.Name, Email: t.Email, Image: t.Picture},
			Expires:     sessionExpiry(r.Context()).UTC(),
			AccessToken: t.AccessToken,
			UserID:      t.SubjectID,
			Error:       string(t.Error),
		})
	}
}

// renderTemplate executes into a buffer so a failing template never sends a partial page.
func (s *Server) renderTemplate(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logError(r.Method, r.URL.Path, err)
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
