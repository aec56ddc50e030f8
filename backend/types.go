package backend

import "time"

// Profile is the Google-linked profile the backend keeps next to each user.
type Profile struct {
	GoogleUserID string    `json:"google_user_id,omitempty"`
	PictureURL   string    `json:"picture_url,omitempty"`
	Locale       string    `json:"locale,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// User as returned by /auth/google/ and /auth/me/.
type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Profile   *Profile `json:"profile,omitempty"`
}

// FullName returns "First Last", falling back to the email address.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// IdentityGrant is the response to a successful identity exchange.
type IdentityGrant struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// TokenPair is the response to a successful refresh. Refresh is empty when the
// backend does not rotate refresh tokens.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type identityRequest struct {
	IDToken string `json:"id_token"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}
