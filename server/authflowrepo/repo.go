// Package authflowrepo stores the short-lived state of an in-progress Google login,
// keyed by the OAuth state parameter.
package authflowrepo

import (
	"context"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
)

// DefaultTTL bounds how long a user may take on the provider's consent screen.
const DefaultTTL = 10 * time.Minute

var ErrStateNotFound = errors.New("auth flow state not found")

type AuthFlowState struct {
	CodeVerifier string    `json:"code_verifier"`
	Nonce        string    `json:"nonce"`
	ReturnURL    string    `json:"return_url"`
	CreatedAt    time.Time `json:"created_at"`
}

type Repo interface {
	Upsert(ctx context.Context, state string, authState *AuthFlowState) error
	// Take returns the flow state and removes it, so a state value is usable once.
	Take(ctx context.Context, state string) (*AuthFlowState, error)
	Delete(ctx context.Context, state string) error
}
