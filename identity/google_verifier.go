package identity

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-portal-server/internal/errors"
	"google.golang.org/api/idtoken"
)

// ValidateFunc matches idtoken.Validate.
type ValidateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// GoogleAPIVerifier verifies ID tokens with Google's idtoken package, which keeps
// its own cache of Google's signing certificates.
type GoogleAPIVerifier struct {
	audience string
	validate ValidateFunc
}

type GoogleAPIVerifierOption func(*GoogleAPIVerifier)

// WithValidateFunc replaces idtoken.Validate.
func WithValidateFunc(fn ValidateFunc) GoogleAPIVerifierOption {
	return func(v *GoogleAPIVerifier) {
		v.validate = fn
	}
}

// NewGoogleAPIVerifier creates a verifier accepting tokens issued for audience (the OAuth client ID).
func NewGoogleAPIVerifier(audience string, opts ...GoogleAPIVerifierOption) *GoogleAPIVerifier {
	v := &GoogleAPIVerifier{
		audience: audience,
		validate: idtoken.Validate,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *GoogleAPIVerifier) Verify(ctx context.Context, rawIDToken, nonce string) (*Assertion, error) {
	if rawIDToken == "" {
		return nil, errors.ErrMissingIDToken
	}

	payload, err := v.validate(ctx, rawIDToken, v.audience)
	if err != nil {
		return nil, fmt.Errorf("ID token validation failed: %w", err)
	}

	if claimString(payload.Claims, "nonce") != nonce {
		return nil, errors.ErrInvalidNonce
	}

	return &Assertion{
		IDToken: rawIDToken,
		Subject: payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}
