package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChainMiddleware_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.HandlerFunc) http.HandlerFunc {
		return func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next(w, r)
			}
		}
	}

	h := ChainMiddleware(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }, mw("first"), mw("second"))
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestRecoverMiddleware(t *testing.T) {
	h := newHarness(t)
	handler := h.srv.RecoverMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCorsPreflight(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, RouteTasks, nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodOptions, RouteTasks, nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = h.do(req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsOnAPIResponses(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, RouteSession, nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := h.do(req)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWWWRedirect(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/login?x=1", nil)
	req.Host = "www.portal.example.com"
	rec := h.do(req)
	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "https://portal.example.com/login?x=1", rec.Header().Get("Location"))
}

func TestStaticFiles(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/static/app.css")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	require.Contains(t, rec.Header().Get("Cache-Control"), "max-age=300")

	rec = h.get("/robots.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Disallow")

	rec = h.get("/static/missing.js")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticFiles_NotModified(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/static/app.css")
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/static/app.css", nil)
	req.Header.Set("If-None-Match", etag)
	rec = h.do(req)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Zero(t, rec.Body.Len())
	require.Equal(t, etag, rec.Header().Get("ETag"))
}

func TestStaticFiles_Gzip(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/static/app.js", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(plain), "data-toggle")
}
