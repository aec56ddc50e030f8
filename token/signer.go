package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed cookie form of a Token. Expiries are Unix milliseconds.
type Claims struct {
	jwt.RegisteredClaims

	AccessToken           string `json:"at,omitempty"`
	RefreshToken          string `json:"rt,omitempty"`
	AccessTokenExpiresAt  int64  `json:"ate,omitempty"`
	RefreshTokenExpiresAt int64  `json:"rte,omitempty"`
	UserID                int64  `json:"uid,omitempty"`
	Email                 string `json:"email,omitempty"`
	Name                  string `json:"name,omitempty"`
	Picture               string `json:"picture,omitempty"`
	Error                 string `json:"err,omitempty"`
}

// Signer encodes Tokens into signed session cookies and back.
type Signer interface {
	Encode(t Token, issuedAt time.Time) (string, error)
	Decode(raw string) (Token, error)
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

type SignerOption func(*HMACSigner)

// WithSignerNowFunc overrides the clock used to validate exp/iat.
func WithSignerNowFunc(now func() time.Time) SignerOption {
	return func(s *HMACSigner) {
		s.now = now
	}
}

// NewHMACSigner creates a signer whose cookies expire maxAge after issuance.
func NewHMACSigner(secret []byte, maxAge time.Duration, opts ...SignerOption) *HMACSigner {
	s := &HMACSigner{
		secret: secret,
		maxAge: maxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (h *HMACSigner) Encode(t Token, issuedAt time.Time) (string, error) {
	if t.SessionID == "" {
		return "", fmt.Errorf("token has no session id")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        t.SessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(h.ExpiresAt(issuedAt)),
		},
		AccessToken:           t.AccessToken,
		RefreshToken:          t.RefreshToken,
		AccessTokenExpiresAt:  toMillis(t.AccessTokenExpiresAt),
		RefreshTokenExpiresAt: toMillis(t.RefreshTokenExpiresAt),
		UserID:                t.SubjectID,
		Email:                 t.Email,
		Name:                  t.Name,
		Picture:               t.Picture,
		Error:                 string(t.Error),
	}
	if t.SubjectID != 0 {
		claims.Subject = fmt.Sprintf("%d", t.SubjectID)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (h *HMACSigner) Decode(raw string) (Token, error) {
	t, _, err := h.DecodeWithExpiry(raw)
	return t, err
}

// DecodeWithExpiry is Decode that also returns the cookie's exp claim.
func (h *HMACSigner) DecodeWithExpiry(raw string) (Token, time.Time, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, h.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(h.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return Token{}, time.Time{}, fmt.Errorf("failed to parse session token: %w", err)
	}
	if claims.ID == "" {
		return Token{}, time.Time{}, fmt.Errorf("session token has no id")
	}

	t := Token{
		SessionID:             claims.ID,
		AccessToken:           claims.AccessToken,
		RefreshToken:          claims.RefreshToken,
		AccessTokenExpiresAt:  fromMillis(claims.AccessTokenExpiresAt),
		RefreshTokenExpiresAt: fromMillis(claims.RefreshTokenExpiresAt),
		SubjectID:             claims.UserID,
		Email:                 claims.Email,
		Name:                  claims.Name,
		Picture:               claims.Picture,
		Error:                 ErrorTag(claims.Error),
	}
	return t, claims.ExpiresAt.Time, nil
}

// MaxAge is the lifetime of an encoded cookie.
func (h *HMACSigner) MaxAge() time.Duration {
	return h.maxAge
}

// ExpiresAt is the exp claim of a cookie issued at issuedAt, at claim precision.
func (h *HMACSigner) ExpiresAt(issuedAt time.Time) time.Time {
	return issuedAt.Add(h.maxAge).Truncate(jwt.TimePrecision)
}

func (h *HMACSigner) verificationKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
