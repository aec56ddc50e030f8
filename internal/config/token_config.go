package config

import "time"

// TokenConfig holds the client-computed lifetimes of the backend-issued tokens.
// The backend payload carries no expiry we trust; expiries are always issuance time
// plus these TTLs.
type TokenConfig interface {
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetRefreshExtendsSession() bool
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetAccessTokenTTL() time.Duration {
	return GetDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
}

func (Tokens) GetRefreshTokenTTL() time.Duration {
	return GetDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour) // 7 days
}

// GetRefreshExtendsSession reports whether a successful refresh resets the refresh
// token expiry. Off by default: the refresh token dies 7 days after login.
func (Tokens) GetRefreshExtendsSession() bool {
	return GetBool("REFRESH_EXTENDS_SESSION", false)
}
