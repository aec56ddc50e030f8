package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/server/authflowrepo"
	"github.com/jrsteele09/go-portal-server/token"
)

// stateCookieName binds an in-progress login to the browser that started it.
const stateCookieName = "portal_auth_state"

var randomSource io.Reader = rand.Reader

// generateRandomString creates a random base64url string from length bytes.
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(randomSource, b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// readSession decodes the session cookie and returns its expiry. http.ErrNoCookie
// means there is none; errors.ErrRevocationLookup means the cookie is intact but
// could not be checked.
func (s *Server) readSession(r *http.Request) (token.Token, time.Time, error) {
	c, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil || c.Value == "" {
		return token.Token{}, time.Time{}, http.ErrNoCookie
	}
	t, expires, err := s.signer.DecodeWithExpiry(c.Value)
	if err != nil {
		return token.Token{}, time.Time{}, errors.Wrapf(errors.ErrInvalidSession, "%v", err)
	}
	revoked, err := s.revoked.IsRevoked(r.Context(), t.SessionID)
	if err != nil {
		return token.Token{}, time.Time{}, err
	}
	if revoked {
		return token.Token{}, time.Time{}, errors.ErrSessionRevoked
	}
	return t, expires, nil
}

// SetSessionCookie writes t as a new session cookie and returns its expiry.
func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, t token.Token) (time.Time, error) {
	issuedAt := s.nowFunc()
	raw, err := s.signer.Encode(t, issuedAt)
	if err != nil {
		return time.Time{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    raw,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.signer.MaxAge().Seconds()),
	})
	return s.signer.ExpiresAt(issuedAt), nil
}

func (s *Server) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// setStateCookie stores a signed copy of state, valid as long as the flow itself.
func (s *Server) setStateCookie(w http.ResponseWriter, r *http.Request, state string) error {
	now := s.nowFunc()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        state,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(authflowrepo.DefaultTTL)),
	}).SignedString(s.flowKey)
	if err != nil {
		return fmt.Errorf("failed to sign state cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    raw,
		Path:     RouteAuthPrefix,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(authflowrepo.DefaultTTL.Seconds()),
	})
	return nil
}

func (s *Server) clearStateCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     RouteAuthPrefix,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// verifyStateCookie checks that the callback's state was issued to this browser.
func (s *Server) verifyStateCookie(r *http.Request, state string) error {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidState, "no state cookie")
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(c.Value, claims,
		func(*jwt.Token) (interface{}, error) { return s.flowKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidState, "%v", err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(state)) != 1 {
		return errors.Wrapf(errors.ErrInvalidState, "state does not match cookie")
	}
	return nil
}

// safeReturnURL keeps post-login redirects on this site.
func safeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return u.RequestURI()
}

// loginURL is the login page with a callbackUrl pointing back at r.
func loginURL(r *http.Request) string {
	return RouteLogin + "?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	redirectSuccess(w, r, path+"?error="+url.QueryEscape(errorMsg))
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, RouteAPIPrefix)
}
