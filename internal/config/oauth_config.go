package config

import "time"

type OAuthConfig interface {
	GetDefaultClientID() string
	GetRefreshTokenLength() int
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetTokenIssuer() string
	GetTokenAudience() string
	GetTokenSigningSecret() string
}

// GetDefaultClientID is the client used when a login request does not name one.
func (c *mainConfig) GetDefaultClientID() string {
	return c.str("default_client_id", "web-client")
}

func (c *mainConfig) GetRefreshTokenLength() int {
	return c.integer("refresh_token_length", 32) // 32 bytes = 256 bits
}

func (c *mainConfig) GetDefaultAccessTokenExpiry() time.Duration {
	return c.duration("access_token_expiry", 1*time.Hour)
}

func (c *mainConfig) GetDefaultRefreshTokenExpiry() time.Duration {
	return c.duration("refresh_token_expiry", 7*24*time.Hour) // 7 days
}

func (c *mainConfig) GetTokenIssuer() string {
	return c.str("token_issuer", c.GetBaseURL())
}

func (c *mainConfig) GetTokenAudience() string {
	return c.str("token_audience", c.GetAppName())
}

// GetTokenSigningSecret returns the HMAC secret for access tokens. Empty means a random
// secret is generated at startup, invalidating outstanding access tokens on restart.
func (c *mainConfig) GetTokenSigningSecret() string {
	return c.str("token_signing_secret", "")
}
