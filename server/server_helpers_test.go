package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/identity"
	"github.com/jrsteele09/go-portal-server/internal/config"
	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/server/authflowrepo"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/jrsteele09/go-portal-server/token/refresh"
	"github.com/jrsteele09/go-portal-server/token/refresh/refreshfake"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const testCookieName = "portal_session"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeProvider stands in for Google. Code "good-code" redeems to "google-id-token",
// which verifies against the nonce handed to the last AuthCodeURL call.
type fakeProvider struct {
	mu           sync.Mutex
	nonce        string
	lastVerifier string

	exchangeCalls atomic.Int32
}

func (f *fakeProvider) AuthCodeURL(_ context.Context, state, nonce, verifier string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce = nonce
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state), nil
}

func (f *fakeProvider) Exchange(_ context.Context, code, verifier string) (string, error) {
	f.exchangeCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastVerifier = verifier
	if code != "good-code" {
		return "", errors.New("invalid_grant")
	}
	return "google-id-token", nil
}

func (f *fakeProvider) Verify(_ context.Context, raw, nonce string) (*identity.Assertion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if nonce != f.nonce {
		return nil, errors.ErrInvalidNonce
	}
	return &identity.Assertion{
		IDToken: raw,
		Subject: "google-sub-1",
		Email:   "ada@example.com",
		Name:    "Ada Lovelace",
		Picture: "https://example.com/ada.png",
	}, nil
}

type apiRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          map[string]any
}

// fakeAPI is the resource side of the backend, scripted by "METHOD path".
type fakeAPI struct {
	mu       sync.Mutex
	requests []apiRequest
	status   map[string]int
	bodies   map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *backend.Client) {
	api := &fakeAPI{
		status: map[string]int{},
		bodies: map[string]string{
			"GET /auth/me/":        `{"id":7,"username":"ada","email":"ada@example.com","first_name":"Ada","last_name":"Lovelace"}`,
			"GET /tasks/":          `[{"id":42,"title":"Write report","detail":null,"done":false},{"id":7,"title":"Call Bob","detail":"re: invoice","done":true}]`,
			"POST /tasks/":         `{"id":43,"title":"Buy milk","detail":"","done":false}`,
			"PUT /tasks/42/":       `{"id":42,"title":"Write final report","detail":"by Friday","done":false}`,
			"PATCH /tasks/42/":     `{"id":42,"title":"Write report","detail":null,"done":true}`,
			"DELETE /tasks/42/":    ``,
			"GET /schedules/":      `{"results":[{"id":1,"title":"Standup","memo":"","location":"Room 1","date":"2025-06-01T09:30:00Z"},{"id":2,"title":"Dentist","memo":"","location":"","date":"2025-06-02T15:00:00Z"}]}`,
			"POST /schedules/":     `{"id":3,"title":"Lunch","memo":"","location":"","date":"2025-06-01T12:30:00Z"}`,
			"DELETE /schedules/1/": ``,
			"GET /bookmarks/":      `[{"id":5,"name":"Go","url":"https://go.dev","iconEmoji":"🐹","color":"#00add8"}]`,
			"POST /bookmarks/":     `{"id":6,"name":"Docs","url":"https://pkg.go.dev","iconEmoji":"","color":""}`,
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		rec := apiRequest{Method: r.Method, Path: r.URL.Path, Authorization: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)

		api.mu.Lock()
		api.requests = append(api.requests, rec)
		status := api.status[key]
		body, known := api.bodies[key]
		api.mu.Unlock()

		switch {
		case status != 0:
			w.WriteHeader(status)
		case !known:
			w.WriteHeader(http.StatusNotFound)
		case body == "":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)
	return api, backend.NewClient(srv.URL)
}

func (a *fakeAPI) fail(key string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status[key] = status
}

func (a *fakeAPI) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *fakeAPI) last() apiRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

type harness struct {
	srv      *Server
	clock    *clock
	provider *fakeProvider
	backend  *refreshfake.FakeBackend
	api      *fakeAPI
	flows    *authflowrepo.InMemoryRepo
	revoked  *token.InMemoryRevokedSessionCache
}

// newHarness builds a server over fakes. mods may swap individual dependencies.
func newHarness(t *testing.T, mods ...func(*Dependencies)) *harness {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("SESSION_SECRET", "test-session-secret")
	t.Setenv("SESSION_COOKIE_NAME", testCookieName)
	t.Setenv("SESSION_MAX_AGE", "720h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")

	c := &clock{now: t0}
	fb := refreshfake.NewFakeBackend().
		AddGrant("google-id-token", backend.IdentityGrant{Access: "A1", Refresh: "R1", User: backend.User{ID: 7, Email: "ada@example.com"}}).
		AddRefresh("R1", backend.TokenPair{Access: "A2", Refresh: "R2"})
	api, client := newFakeAPI(t)
	flows := authflowrepo.NewInMemoryRepo(authflowrepo.WithNowFunc(c.Now))
	revoked := token.NewInMemoryRevokedSessionCache().WithNowFunc(c.Now)
	provider := &fakeProvider{}

	deps := Dependencies{
		Provider:  provider,
		Sessions:  refresh.New(fb, refresh.WithNowFunc(c.Now)),
		API:       client,
		AuthFlows: flows,
		Revoked:   revoked,
	}
	for _, mod := range mods {
		mod(&deps)
	}

	srv, err := New(config.New(), deps, WithNowFunc(c.Now))
	require.NoError(t, err)

	return &harness{srv: srv, clock: c, provider: provider, backend: fb, api: api, flows: flows, revoked: revoked}
}

// established is a signed-in session issued at t0.
func established() token.Token {
	return token.Token{
		SessionID:             "sess-1",
		AccessToken:           "A1",
		RefreshToken:          "R1",
		AccessTokenExpiresAt:  t0.Add(15 * time.Minute),
		RefreshTokenExpiresAt: t0.Add(7 * 24 * time.Hour),
		SubjectID:             7,
		Email:                 "ada@example.com",
		Name:                  "Ada Lovelace",
	}
}

func (h *harness) isRevoked(t *testing.T, sessionID string) bool {
	t.Helper()
	revoked, err := h.revoked.IsRevoked(t.Context(), sessionID)
	require.NoError(t, err)
	return revoked
}

func (h *harness) cookieFor(t *testing.T, tok token.Token) *http.Cookie {
	t.Helper()
	raw, err := h.srv.signer.Encode(tok, h.clock.Now())
	require.NoError(t, err)
	return &http.Cookie{Name: testCookieName, Value: raw}
}

func (h *harness) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (h *harness) send(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, cookies...)
}

// responseCookie returns the named Set-Cookie of rec, or nil.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
