// Package refreshfake provides an in-memory refresh.Backend for tests.
package refreshfake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/token/refresh"
)

var _ refresh.Backend = (*FakeBackend)(nil)

type FakeBackend struct {
	lock sync.Mutex

	grants map[string]*backend.IdentityGrant // keyed by ID token
	pairs  map[string]*backend.TokenPair     // keyed by refresh token

	// Gate, when set, blocks Refresh until it is closed.
	Gate chan struct{}

	ExchangeCalls atomic.Int32
	RefreshCalls  atomic.Int32
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		grants: make(map[string]*backend.IdentityGrant),
		pairs:  make(map[string]*backend.TokenPair),
	}
}

// AddGrant makes ExchangeIdentity(idToken) succeed with grant.
func (f *FakeBackend) AddGrant(idToken string, grant backend.IdentityGrant) *FakeBackend {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.grants[idToken] = &grant
	return f
}

// AddRefresh makes Refresh(refreshToken) succeed with pair.
func (f *FakeBackend) AddRefresh(refreshToken string, pair backend.TokenPair) *FakeBackend {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.pairs[refreshToken] = &pair
	return f
}

func (f *FakeBackend) ExchangeIdentity(_ context.Context, idToken string) (*backend.IdentityGrant, error) {
	f.ExchangeCalls.Add(1)
	f.lock.Lock()
	defer f.lock.Unlock()
	grant, ok := f.grants[idToken]
	if !ok {
		return nil, &backend.APIError{Method: "POST", Path: "/auth/google/", StatusCode: 400, Body: `{"error":"Invalid token"}`}
	}
	g := *grant
	return &g, nil
}

func (f *FakeBackend) Refresh(ctx context.Context, refreshToken string) (*backend.TokenPair, error) {
	f.RefreshCalls.Add(1)
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	pair, ok := f.pairs[refreshToken]
	if !ok {
		return nil, errors.Wrapf(&backend.APIError{Method: "POST", Path: "/auth/refresh/", StatusCode: 401}, "refresh rejected")
	}
	p := *pair
	return &p, nil
}
