// Package notify delivers action token links to users.
package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-token-authority/users"
)

const (
	ActivationPath    = "/auth/activate"
	ResetPasswordPath = "/auth/reset-password"
)

// Sender delivers activation and password reset links. Implementations must be safe for
// concurrent use.
type Sender interface {
	SendActivationLink(ctx context.Context, user *users.User, tokenValue string) error
	SendResetLink(ctx context.Context, user *users.User, tokenValue string) error
}

// Link builds baseURL+path with the token as its query string.
func Link(baseURL, path, tokenValue string) string {
	return strings.TrimSuffix(baseURL, "/") + path + "?" + url.Values{"token": {tokenValue}}.Encode()
}
