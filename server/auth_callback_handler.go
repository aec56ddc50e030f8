package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/rs/zerolog/log"
)

// OAuthCallbackHandler completes the Google login: it checks the state against
// both the flow store and the browser's state cookie, redeems the code, verifies
// the ID token and hands the assertion to the session orchestration.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state := r.FormValue("state")
		code := r.FormValue("code")

		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Warn().
				Str("error", errorParam).
				Str("error_description", r.FormValue("error_description")).
				Msg("Provider returned an authorization error")
			s.clearStateCookie(w, r)
			if errorParam == "access_denied" {
				redirectWithError(w, r, RouteLogin, loginErrorAccessDenied)
				return
			}
			redirectWithError(w, r, RouteLogin, loginErrorCallback)
			return
		}

		if code == "" || state == "" {
			redirectWithError(w, r, RouteLogin, loginErrorCallback)
			return
		}

		if err := s.verifyStateCookie(r, state); err != nil {
			log.Warn().Err(err).Msg("Rejected OAuth callback")
			redirectWithError(w, r, RouteLogin, loginErrorCallback)
			return
		}
		s.clearStateCookie(w, r)

		flow, err := s.authFlows.Take(ctx, state)
		if err != nil {
			log.Warn().Err(err).Msg("Unknown or expired OAuth state")
			redirectWithError(w, r, RouteLogin, loginErrorCallback)
			return
		}

		rawIDToken, err := s.provider.Exchange(ctx, code, flow.CodeVerifier)
		if err != nil {
			log.Err(err).Msg("Authorization code exchange failed")
			redirectWithError(w, r, RouteLogin, loginErrorCallback)
			return
		}

		assertion, err := s.provider.Verify(ctx, rawIDToken, flow.Nonce)
		if err != nil {
			log.Err(err).Msg("ID token verification failed")
			redirectWithError(w, r, RouteLogin, loginErrorCallback)
			return
		}

		if old, ok := SessionFromContext(ctx); ok {
			s.endSession(r, old)
		}

		session := token.Token{
			SessionID: uuid.NewString(),
			Email:     assertion.Email,
			Name:      assertion.Name,
			Picture:   assertion.Picture,
		}
		session = s.sessions.Evaluate(ctx, session, assertion)

		if _, err := s.SetSessionCookie(w, r, session); err != nil {
			log.Err(err).Msg("Failed to issue session cookie")
			redirectWithError(w, r, RouteLogin, loginErrorCallback)
			return
		}

		log.Info().
			Str("session_id", session.SessionID).
			Bool("backend", session.HasBackendTokens()).
			Msg("Login completed")
		redirectSuccess(w, r, safeReturnURL(flow.ReturnURL))
	}
}
