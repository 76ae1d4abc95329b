// Package identity describes who is logging in and how their credentials are checked.
package identity

import "context"

// Principal is an authenticated identity. Name is the stable principal name sessions are
// keyed by (the user's email for both password and OIDC logins).
type Principal struct {
	Name        string
	Subject     string
	DisplayName string
}

// Credentials carries whatever the caller presented. Verifiers read the fields they understand.
type Credentials struct {
	Username string
	Password string
	IDToken  string // OIDC ID token issued by an upstream provider
	Code     string // OIDC authorization code to exchange for an ID token
}

// Verifier authenticates credentials. Rejections wrap errors.ErrInvalidCredentials.
type Verifier interface {
	Authenticate(ctx context.Context, credentials Credentials) (Principal, error)
}
