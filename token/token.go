package token

import (
	"context"
	"time"

	"github.com/jrsteele09/go-token-authority/clients"
	"github.com/jrsteele09/go-token-authority/identity"
)

// Type distinguishes the two credentials held by a session.
type Type string

const (
	Access  Type = "access_token"
	Refresh Type = "refresh_token"
)

// Token is an issued credential. Value is opaque to everything except the issuer.
type Token struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the token is no longer valid at now.
func (t *Token) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// ExpiresIn is the whole number of seconds left before expiry, never negative.
func (t *Token) ExpiresIn(now time.Time) int {
	if t.IsExpired(now) {
		return 0
	}
	return int(t.ExpiresAt.Sub(now).Seconds())
}

// Issuer mints new credentials. A nil token with a nil error is treated as a generation failure
// by callers.
type Issuer interface {
	MintAccessToken(ctx context.Context, principal identity.Principal, client *clients.Client) (*Token, error)
	MintRefreshToken(ctx context.Context, principal identity.Principal, client *clients.Client) (*Token, error)
}
