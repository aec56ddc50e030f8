package config

const (
	VerifierOIDC   = "oidc"
	VerifierGoogle = "google"
)

type IdentityConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuer() string
	GetIdentityVerifier() string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Identity) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (Identity) GetGoogleIssuer() string {
	return GetEnv("GOOGLE_ISSUER", "https://accounts.google.com")
}

// GetIdentityVerifier selects how ID tokens are verified: "oidc" uses the discovered
// provider keys, "google" uses Google's idtoken validator.
func (Identity) GetIdentityVerifier() string {
	switch v := GetEnv("IDENTITY_VERIFIER", VerifierOIDC); v {
	case VerifierGoogle:
		return v
	default:
		return VerifierOIDC
	}
}
