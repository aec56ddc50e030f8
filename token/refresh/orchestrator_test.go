package refresh_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/identity"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/jrsteele09/go-portal-server/token/refresh"
	"github.com/jrsteele09/go-portal-server/token/refresh/refreshfake"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func setup(opts ...refresh.Option) (*refresh.Orchestrator, *refreshfake.FakeBackend, *clock) {
	fake := refreshfake.NewFakeBackend().
		AddGrant("google-id-token", backend.IdentityGrant{Access: "A1", Refresh: "R1", User: backend.User{ID: 7, Email: "ada@example.com"}}).
		AddRefresh("R1", backend.TokenPair{Access: "A2", Refresh: "R2"})
	c := &clock{now: t0}
	o := refresh.New(fake, append([]refresh.Option{refresh.WithNowFunc(c.Now)}, opts...)...)
	return o, fake, c
}

func established() token.Token {
	return token.Token{
		SessionID:             "sess-1",
		AccessToken:           "A1",
		RefreshToken:          "R1",
		AccessTokenExpiresAt:  t0.Add(15 * time.Minute),
		RefreshTokenExpiresAt: t0.Add(7 * 24 * time.Hour),
		SubjectID:             7,
	}
}

func TestEvaluate_InitialExchange(t *testing.T) {
	o, fake, _ := setup()
	prev := token.Token{SessionID: "sess-1"}

	next := o.Evaluate(context.Background(), prev, &identity.Assertion{
		IDToken: "google-id-token",
		Subject: "google-sub-1",
		Name:    "Ada Lovelace",
		Picture: "https://example.com/ada.png",
	})

	require.Equal(t, "sess-1", next.SessionID)
	require.Equal(t, "A1", next.AccessToken)
	require.Equal(t, "R1", next.RefreshToken)
	require.Equal(t, int64(7), next.SubjectID)
	require.Equal(t, t0.Add(15*time.Minute), next.AccessTokenExpiresAt)
	require.Equal(t, t0.Add(7*24*time.Hour), next.RefreshTokenExpiresAt)
	require.Equal(t, "ada@example.com", next.Email)
	require.Equal(t, "Ada Lovelace", next.Name)
	require.Equal(t, token.ErrorNone, next.Error)
	require.Equal(t, int32(1), fake.ExchangeCalls.Load())
	require.Equal(t, int32(0), fake.RefreshCalls.Load())
}

func TestEvaluate_InitialExchangeFailureKeepsPrevious(t *testing.T) {
	o, fake, _ := setup()
	prev := token.Token{SessionID: "sess-1", Email: "ada@example.com"}

	next := o.Evaluate(context.Background(), prev, &identity.Assertion{IDToken: "rejected"})

	require.True(t, prev.Equal(next))
	require.False(t, next.HasBackendTokens())
	require.Equal(t, int32(1), fake.ExchangeCalls.Load())
}

func TestEvaluate_NoBackendTokens(t *testing.T) {
	o, fake, c := setup()
	prev := token.Token{SessionID: "sess-1", Email: "ada@example.com"}

	c.Set(t0.Add(365 * 24 * time.Hour))
	next := o.Evaluate(context.Background(), prev, nil)

	require.True(t, prev.Equal(next))
	require.Equal(t, int32(0), fake.RefreshCalls.Load())
}

func TestEvaluate_AccessTokenStillValid(t *testing.T) {
	o, fake, c := setup()
	prev := established()

	c.Set(t0.Add(14 * time.Minute))
	next := o.Evaluate(context.Background(), prev, nil)

	require.True(t, prev.Equal(next))
	require.Equal(t, int32(0), fake.RefreshCalls.Load())
}

func TestEvaluate_RefreshTokenExpired(t *testing.T) {
	o, fake, c := setup()
	prev := established()

	c.Set(prev.RefreshTokenExpiresAt.Add(time.Millisecond))
	next := o.Evaluate(context.Background(), prev, nil)

	require.Equal(t, token.ErrorRefreshTokenExpired, next.Error)
	require.True(t, next.RequiresLogin())
	require.Equal(t, "A1", next.AccessToken)
	require.Equal(t, int32(0), fake.RefreshCalls.Load())
	require.Equal(t, token.ErrorNone, prev.Error)

	// Stays tagged on later evaluations
	again := o.Evaluate(context.Background(), next, nil)
	require.Equal(t, token.ErrorRefreshTokenExpired, again.Error)
	require.Equal(t, int32(0), fake.RefreshCalls.Load())
}

func TestEvaluate_RefreshesExpiredAccessToken(t *testing.T) {
	o, fake, c := setup()
	prev := established()

	// Exactly at expiry the access token is no longer valid
	c.Set(prev.AccessTokenExpiresAt)
	next := o.Evaluate(context.Background(), prev, nil)

	require.Equal(t, "A2", next.AccessToken)
	require.Equal(t, "R2", next.RefreshToken)
	require.Equal(t, prev.AccessTokenExpiresAt.Add(15*time.Minute), next.AccessTokenExpiresAt)
	require.Equal(t, prev.RefreshTokenExpiresAt, next.RefreshTokenExpiresAt)
	require.Equal(t, int64(7), next.SubjectID)
	require.Equal(t, int32(1), fake.RefreshCalls.Load())
}

func TestEvaluate_RefreshAtRefreshExpiryBoundary(t *testing.T) {
	o, fake, c := setup()
	prev := established()

	c.Set(prev.RefreshTokenExpiresAt)
	next := o.Evaluate(context.Background(), prev, nil)

	require.Equal(t, token.ErrorNone, next.Error)
	require.Equal(t, "A2", next.AccessToken)
	require.Equal(t, int32(1), fake.RefreshCalls.Load())
}

func TestEvaluate_RefreshExtendsSession(t *testing.T) {
	o, _, c := setup(refresh.WithRefreshExtendsSession(true))
	prev := established()

	now := t0.Add(time.Hour)
	c.Set(now)
	next := o.Evaluate(context.Background(), prev, nil)

	require.Equal(t, now.Add(7*24*time.Hour), next.RefreshTokenExpiresAt)
}

func TestEvaluate_CustomTTLs(t *testing.T) {
	o, _, _ := setup(refresh.WithTokenTTLs(5*time.Minute, time.Hour))

	next := o.Evaluate(context.Background(), token.Token{SessionID: "sess-1"}, &identity.Assertion{IDToken: "google-id-token"})

	require.Equal(t, t0.Add(5*time.Minute), next.AccessTokenExpiresAt)
	require.Equal(t, t0.Add(time.Hour), next.RefreshTokenExpiresAt)
}

func TestEvaluate_RefreshFailureKeepsPrevious(t *testing.T) {
	o, fake, c := setup()
	prev := established()
	prev.RefreshToken = "revoked-on-backend"

	c.Set(t0.Add(time.Hour))
	next := o.Evaluate(context.Background(), prev, nil)

	require.True(t, prev.Equal(next))
	require.Equal(t, int32(1), fake.RefreshCalls.Load())
}

func TestEvaluate_RefreshWithoutRotation(t *testing.T) {
	o, fake, c := setup()
	fake.AddRefresh("R1", backend.TokenPair{Access: "A2"})
	prev := established()

	c.Set(t0.Add(time.Hour))
	next := o.Evaluate(context.Background(), prev, nil)

	require.Equal(t, "A2", next.AccessToken)
	require.Equal(t, "R1", next.RefreshToken)
}

func TestEvaluate_ConcurrentRefreshIsCoalesced(t *testing.T) {
	o, fake, c := setup()
	fake.Gate = make(chan struct{})
	prev := established()
	c.Set(t0.Add(time.Hour))

	const callers = 8
	results := make([]token.Token, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.Evaluate(context.Background(), prev, nil)
		}(i)
	}

	require.Eventually(t, func() bool { return fake.RefreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(fake.Gate)
	wg.Wait()

	require.Equal(t, int32(1), fake.RefreshCalls.Load())
	for _, r := range results {
		require.Equal(t, "A2", r.AccessToken)
		require.Equal(t, "R2", r.RefreshToken)
	}
}

func TestEvaluate_CancelledCallerDoesNotAbortSharedRefresh(t *testing.T) {
	o, fake, c := setup()
	fake.Gate = make(chan struct{})
	prev := established()
	c.Set(t0.Add(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan token.Token, 1)
	go func() { done <- o.Evaluate(ctx, prev, nil) }()

	require.Eventually(t, func() bool { return fake.RefreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	close(fake.Gate)

	next := <-done
	require.Equal(t, "A2", next.AccessToken)
}
