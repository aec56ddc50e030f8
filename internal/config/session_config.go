package config

import "time"

const defaultSessionSecret = "dev-insecure-session-secret-change-me"

type SessionConfig interface {
	GetSessionSecret() string
	GetSessionCookieName() string
	GetSessionMaxAge() time.Duration
	IsDefaultSessionSecret() bool
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", defaultSessionSecret)
}

func (s Session) IsDefaultSessionSecret() bool {
	return s.GetSessionSecret() == defaultSessionSecret
}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "portal_session")
}

// GetSessionMaxAge bounds the signed session cookie itself, independently of the
// backend token expiries it carries.
func (Session) GetSessionMaxAge() time.Duration {
	return GetDuration("SESSION_MAX_AGE", 30*24*time.Hour)
}
