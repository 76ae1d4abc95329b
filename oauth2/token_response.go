package oauth2

import (
	"time"

	"github.com/jrsteele09/go-token-authority/users"
)

// TokenType is the only token type this service issues.
const TokenType = "bearer"

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	// AccessToken is the JWT used to access protected resources.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: Include in Authorization header: "Bearer <access_token>"
	// Lifespan: Short-lived (typically 15 minutes - 1 hour)
	AccessToken string `json:"access_token"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Example: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	// Usage: Send to /auth/refresh
	// Lifespan: Long-lived (typically 7-30 days)
	// Note: Not rotated; the same value is returned on every refresh
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType indicates how to use the access token (always "bearer").
	TokenType string `json:"token_type"`

	// ExpiresIn is the remaining lifetime in seconds of the access token.
	// Example: 900 (for 15 minutes)
	// Note: A reused session reports the time left on the existing token
	ExpiresIn int `json:"expires_in"`

	// User is the profile of the principal the session belongs to, when one is on record.
	User *UserProfile `json:"user,omitempty"`
}

// UserProfile is the public view of a user attached to token responses.
type UserProfile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Verified   bool      `json:"verified"`
	DateJoined time.Time `json:"date_joined,omitempty"`
}

// NewUserProfile copies the public fields of user; nil yields nil.
func NewUserProfile(user *users.User) *UserProfile {
	if user == nil {
		return nil
	}
	return &UserProfile{
		ID:         user.ID,
		Email:      user.Email,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Verified:   user.Verified,
		DateJoined: user.DateJoined,
	}
}
