// Package backend is the HTTP client for the portal's REST API: identity
// exchange, token refresh and bearer-authenticated resource calls.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
)

const (
	DefaultHTTPTimeout = 15 * time.Second

	identityPath    = "/auth/google/"
	refreshPath     = "/auth/refresh/"
	currentUserPath = "/auth/me/"

	maxErrorBody = 4 << 10
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a client for the API rooted at baseURL (e.g. http://localhost:8000/api).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExchangeIdentity trades a verified Google ID token for a backend token pair.
func (c *Client) ExchangeIdentity(ctx context.Context, idToken string) (*IdentityGrant, error) {
	if idToken == "" {
		return nil, errors.ErrMissingIDToken
	}

	var grant IdentityGrant
	if err := c.Do(ctx, http.MethodPost, identityPath, "", identityRequest{IDToken: idToken}, &grant); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIdentityExchange, err)
	}
	if grant.Access == "" || grant.Refresh == "" {
		return nil, fmt.Errorf("%w: response carried no tokens", errors.ErrIdentityExchange)
	}
	return &grant, nil
}

// Refresh rotates a refresh token into a new access token.
func (c *Client) Refresh(ctx context.Context, refresh string) (*TokenPair, error) {
	var pair TokenPair
	if err := c.Do(ctx, http.MethodPost, refreshPath, "", refreshRequest{Refresh: refresh}, &pair); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrTokenRefresh, err)
	}
	if pair.Access == "" {
		return nil, fmt.Errorf("%w: response carried no access token", errors.ErrTokenRefresh)
	}
	return &pair, nil
}

// CurrentUser returns the user the access token belongs to.
func (c *Client) CurrentUser(ctx context.Context, access string) (*User, error) {
	var user User
	if err := c.Do(ctx, http.MethodGet, currentUserPath, access, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Do performs a JSON call against path. access, when non-empty, is sent as a bearer
// credential. body is JSON-encoded when non-nil; out is decoded when non-nil and the
// response has a body. Non-2xx responses are returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path, access string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if rawOut, ok := out.(*json.RawMessage); ok {
		*rawOut = append((*rawOut)[:0], raw...)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}
