// Package resourcesfake provides session and navigation doubles for store tests.
package resourcesfake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-portal-server/resources"
	"github.com/jrsteele09/go-portal-server/token"
)

var (
	_ resources.TokenSource = (*FakeTokenSource)(nil)
	_ resources.Navigator   = (*FakeNavigator)(nil)
)

// FakeTokenSource returns a fixed token, or no session when Absent is set.
type FakeTokenSource struct {
	lock   sync.RWMutex
	token  token.Token
	absent bool
}

func NewFakeTokenSource(t token.Token) *FakeTokenSource {
	return &FakeTokenSource{token: t}
}

// NoSession returns a source that reports no session.
func NoSession() *FakeTokenSource {
	return &FakeTokenSource{absent: true}
}

func (f *FakeTokenSource) Set(t token.Token) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.token = t
	f.absent = false
}

func (f *FakeTokenSource) Session(context.Context) (token.Token, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.token, !f.absent
}

// FakeNavigator counts login redirects.
type FakeNavigator struct {
	redirects atomic.Int32
}

func (f *FakeNavigator) RedirectToLogin(context.Context) {
	f.redirects.Add(1)
}

func (f *FakeNavigator) Redirects() int {
	return int(f.redirects.Load())
}
