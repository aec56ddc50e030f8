package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-portal-server/internal/errors"
)

// OIDCVerifier verifies ID tokens against the issuer's published keys using go-oidc.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(verifier *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: verifier}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken, nonce string) (*Assertion, error) {
	if rawIDToken == "" {
		return nil, errors.ErrMissingIDToken
	}

	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("ID token verification failed: %w", err)
	}

	var claims struct {
		Nonce   string `json:"nonce"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}

	if claims.Nonce != nonce {
		return nil, errors.ErrInvalidNonce
	}

	return &Assertion{
		IDToken: rawIDToken,
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
