// Package refresh keeps the Session Token's backend credentials current: the
// first exchange after Google login, expiry checks and access-token rotation.
package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/identity"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Backend is the part of the API client the orchestrator needs.
type Backend interface {
	ExchangeIdentity(ctx context.Context, idToken string) (*backend.IdentityGrant, error)
	Refresh(ctx context.Context, refresh string) (*backend.TokenPair, error)
}

type Orchestrator struct {
	backend        Backend
	accessTTL      time.Duration
	refreshTTL     time.Duration
	extendsSession bool
	nowFunc        func() time.Time
	group          singleflight.Group
}

type Option func(*Orchestrator)

// WithTokenTTLs sets the client-computed lifetimes of the access and refresh tokens.
func WithTokenTTLs(access, refresh time.Duration) Option {
	return func(o *Orchestrator) {
		if access > 0 {
			o.accessTTL = access
		}
		if refresh > 0 {
			o.refreshTTL = refresh
		}
	}
}

// WithRefreshExtendsSession makes every successful refresh restart the refresh-token lifetime.
func WithRefreshExtendsSession(extend bool) Option {
	return func(o *Orchestrator) {
		o.extendsSession = extend
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.nowFunc = now
	}
}

func New(b Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:    b,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate returns the token that should be persisted after seeing prev and, right
// after a Google login, the verified assertion. It never fails: backend errors are
// logged and prev is returned so the next request can try again.
func (o *Orchestrator) Evaluate(ctx context.Context, prev token.Token, assertion *identity.Assertion) token.Token {
	if assertion != nil {
		return o.exchange(ctx, prev, assertion)
	}

	if !prev.HasBackendTokens() {
		return prev
	}

	now := o.nowFunc()
	if prev.RefreshTokenExpired(now) {
		if prev.Error != token.ErrorRefreshTokenExpired {
			log.Info().Str("session_id", prev.SessionID).Msg("Refresh token expired - login required")
		}
		return prev.WithError(token.ErrorRefreshTokenExpired)
	}

	if now.Before(prev.AccessTokenExpiresAt) {
		return prev
	}

	return o.refresh(ctx, prev)
}

func (o *Orchestrator) exchange(ctx context.Context, prev token.Token, assertion *identity.Assertion) token.Token {
	grant, err := o.backend.ExchangeIdentity(ctx, assertion.IDToken)
	if err != nil {
		log.Err(err).
			Str("session_id", prev.SessionID).
			Str("subject", assertion.Subject).
			Msg("Identity exchange with backend failed")
		return prev
	}

	next := prev.WithGrant(token.Grant{
		AccessToken:  grant.Access,
		RefreshToken: grant.Refresh,
		SubjectID:    grant.User.ID,
	}, o.nowFunc(), o.accessTTL, o.refreshTTL)
	next.Email = firstNonEmpty(assertion.Email, grant.User.Email, prev.Email)
	next.Name = firstNonEmpty(assertion.Name, prev.Name)
	next.Picture = firstNonEmpty(assertion.Picture, prev.Picture)

	log.Info().
		Str("session_id", next.SessionID).
		Int64("user_id", next.SubjectID).
		Msg("Backend session established")
	return next
}

func (o *Orchestrator) refresh(ctx context.Context, prev token.Token) token.Token {
	// Requests sharing a refresh token share one rotation; the call is detached
	// from any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, coalesced := o.group.Do(prev.RefreshToken, func() (interface{}, error) {
		return o.backend.Refresh(shared, prev.RefreshToken)
	})
	if err != nil {
		log.Err(err).
			Str("session_id", prev.SessionID).
			Msg("Token refresh failed")
		return prev
	}

	pair := v.(*backend.TokenPair)
	refreshToken := pair.Refresh
	if refreshToken == "" {
		refreshToken = prev.RefreshToken
	}

	var refreshTTL time.Duration
	if o.extendsSession {
		refreshTTL = o.refreshTTL
	}
	next := prev.WithRefresh(token.Pair{AccessToken: pair.Access, RefreshToken: refreshToken}, o.nowFunc(), o.accessTTL, refreshTTL)

	log.Info().
		Str("session_id", next.SessionID).
		Bool("coalesced", coalesced).
		Msg("Token refreshed")
	return next
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
