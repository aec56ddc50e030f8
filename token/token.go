package token

import "time"

// ErrorTag marks a session that can no longer be used without a fresh login.
type ErrorTag string

const (
	// ErrorNone is the zero tag.
	ErrorNone ErrorTag = ""
	// ErrorRefreshTokenExpired is set once the refresh token's lifetime has passed.
	ErrorRefreshTokenExpired ErrorTag = "RefreshTokenExpired"
)

// Token is the Session Token: the backend-issued access/refresh pair, their
// client-computed expiries and the identity they belong to.
//
// Token is a value type. Every transition returns a new Token; a Token handed to a
// reader is never changed underneath it.
type Token struct {
	SessionID string // Stable for the life of the browser session (jti of the cookie)

	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time

	SubjectID int64 // Backend user ID, zero until the identity exchange succeeds

	// Identity provider profile, kept for display.
	Email   string
	Name    string
	Picture string

	Error ErrorTag
}

// Grant is the result of a successful identity exchange.
type Grant struct {
	AccessToken  string
	RefreshToken string
	SubjectID    int64
}

// Pair is the result of a successful token refresh.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// HasBackendTokens reports whether the identity exchange ever succeeded for this session.
func (t Token) HasBackendTokens() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// RequiresLogin reports whether the session carries a terminal error tag.
func (t Token) RequiresLogin() bool {
	return t.Error != ErrorNone
}

// AccessTokenValid reports whether the access token may still be used at now.
func (t Token) AccessTokenValid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.AccessTokenExpiresAt)
}

// RefreshTokenExpired reports whether now is strictly past the refresh token expiry.
func (t Token) RefreshTokenExpired(now time.Time) bool {
	return now.After(t.RefreshTokenExpiresAt)
}

// WithGrant returns a copy populated from a first-time identity exchange issued at now.
func (t Token) WithGrant(g Grant, now time.Time, accessTTL, refreshTTL time.Duration) Token {
	t.AccessToken = g.AccessToken
	t.RefreshToken = g.RefreshToken
	t.SubjectID = g.SubjectID
	t.AccessTokenExpiresAt = now.Add(accessTTL)
	t.RefreshTokenExpiresAt = now.Add(refreshTTL)
	t.Error = ErrorNone
	return t
}

// WithRefresh returns a copy carrying a rotated pair issued at now. The refresh
// expiry is only moved when refreshTTL is positive.
func (t Token) WithRefresh(p Pair, now time.Time, accessTTL, refreshTTL time.Duration) Token {
	t.AccessToken = p.AccessToken
	t.RefreshToken = p.RefreshToken
	t.AccessTokenExpiresAt = now.Add(accessTTL)
	if refreshTTL > 0 {
		t.RefreshTokenExpiresAt = now.Add(refreshTTL)
	}
	return t
}

// WithError returns a copy tagged with e.
func (t Token) WithError(e ErrorTag) Token {
	t.Error = e
	return t
}

// Equal reports whether two tokens carry the same state.
func (t Token) Equal(o Token) bool {
	return t.SessionID == o.SessionID &&
		t.AccessToken == o.AccessToken &&
		t.RefreshToken == o.RefreshToken &&
		t.AccessTokenExpiresAt.Equal(o.AccessTokenExpiresAt) &&
		t.RefreshTokenExpiresAt.Equal(o.RefreshTokenExpiresAt) &&
		t.SubjectID == o.SubjectID &&
		t.Email == o.Email &&
		t.Name == o.Name &&
		t.Picture == o.Picture &&
		t.Error == o.Error
}
