package clients

import "strings"

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

// Scopes that decide which profile fields a client may read.
const (
	ScopeProfile = "profile"
	ScopeEmail   = "email"
)

// Client is a registered client application. ID is the internal identifier sessions are bound
// to; ClientID is the stable identifier callers present.
type Client struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId"`
	Type        ClientType `json:"type"`
	Description string     `json:"description"`
	Scopes      []string   `json:"scopes"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopeString joins the client's scopes the way they appear in a token's scope claim.
func (c *Client) ScopeString() string {
	return strings.Join(c.Scopes, " ")
}
