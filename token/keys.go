package token

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const derivedKeyLength = 32

// Key purposes. Each purpose yields an independent key from the same secret.
const (
	PurposeSessionCookie = "portal-session-cookie"
	PurposeFlowState     = "portal-flow-state"
)

// DeriveKey expands secret into a 256-bit key bound to purpose using HKDF-SHA256.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	if purpose == "" {
		return nil, fmt.Errorf("empty key purpose")
	}

	key := make([]byte, derivedKeyLength)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", purpose, err)
	}
	return key, nil
}
