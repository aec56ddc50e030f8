package identity

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-portal-server/internal/errors"
	"golang.org/x/oauth2"
)

const (
	DefaultIssuer = "https://accounts.google.com"

	VerifierOIDC   = "oidc"
	VerifierGoogle = "google"
)

// ProviderConfig holds the OAuth client registration.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Issuer       string
	Verifier     string // VerifierOIDC or VerifierGoogle
}

// GoogleProvider runs the authorization-code flow against Google. Discovery is
// performed on first use and cached; a failed discovery is retried on the next call.
type GoogleProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client

	mu       sync.Mutex
	oauth2   *oauth2.Config
	verifier Verifier
}

type ProviderOption func(*GoogleProvider)

// WithProviderHTTPClient sets the client used for discovery, key fetches and code exchange.
func WithProviderHTTPClient(c *http.Client) ProviderOption {
	return func(p *GoogleProvider) {
		p.httpClient = c
	}
}

// WithVerifier overrides the ID-token verifier chosen from the config.
func WithVerifier(v Verifier) ProviderOption {
	return func(p *GoogleProvider) {
		p.verifier = v
	}
}

func NewGoogleProvider(cfg ProviderConfig, opts ...ProviderOption) *GoogleProvider {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Verifier == "" {
		cfg.Verifier = VerifierOIDC
	}
	p := &GoogleProvider{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GoogleProvider) withClient(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, p.httpClient)
}

func (p *GoogleProvider) discover(ctx context.Context) (*oauth2.Config, Verifier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.oauth2 != nil {
		return p.oauth2, p.verifier, nil
	}

	// Discovery outlives the request that triggered it.
	provider, err := oidc.NewProvider(p.withClient(context.WithoutCancel(ctx)), p.cfg.Issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	if p.verifier == nil {
		switch p.cfg.Verifier {
		case VerifierGoogle:
			p.verifier = NewGoogleAPIVerifier(p.cfg.ClientID)
		default:
			p.verifier = NewOIDCVerifier(provider.Verifier(&oidc.Config{ClientID: p.cfg.ClientID}))
		}
	}

	p.oauth2 = &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  p.cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return p.oauth2, p.verifier, nil
}

// AuthCodeURL returns the Google consent URL carrying state, nonce and the S256
// challenge of verifier.
func (p *GoogleProvider) AuthCodeURL(ctx context.Context, state, nonce, verifier string) (string, error) {
	cfg, _, err := p.discover(ctx)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	), nil
}

// Exchange redeems an authorization code and returns the raw ID token.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (string, error) {
	cfg, _, err := p.discover(ctx)
	if err != nil {
		return "", err
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	oauth2Token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", errors.ErrMissingIDToken
	}
	return rawIDToken, nil
}

func (p *GoogleProvider) Verify(ctx context.Context, rawIDToken, nonce string) (*Assertion, error) {
	_, verifier, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}
	return verifier.Verify(p.withClient(ctx), rawIDToken, nonce)
}
