// Package identity drives the Google login: authorization-code URL with PKCE,
// code exchange and ID-token verification.
package identity

import "context"

// Assertion is a verified Google identity, carried from the login callback into
// the initial backend exchange.
type Assertion struct {
	IDToken string // Raw, verified ID token forwarded to the backend
	Subject string
	Email   string
	Name    string
	Picture string
}

// Verifier checks a raw ID token's signature, audience and expiry, and that its
// nonce matches the one issued with the authorization request.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken, nonce string) (*Assertion, error)
}
