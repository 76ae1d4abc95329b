package config

type IdentityProviderConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURL() string
}

// GetOIDCIssuer returns the upstream identity provider. Empty disables OIDC login.
func (c *mainConfig) GetOIDCIssuer() string {
	return c.str("oidc_issuer", "")
}

func (c *mainConfig) GetOIDCClientID() string {
	return c.str("oidc_client_id", "")
}

func (c *mainConfig) GetOIDCClientSecret() string {
	return c.str("oidc_client_secret", "")
}

func (c *mainConfig) GetOIDCRedirectURL() string {
	return c.str("oidc_redirect_url", c.GetBaseURL()+"/auth/login/oidc")
}
