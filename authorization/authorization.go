// Package authorization holds the session records that bind a principal's access and refresh
// tokens to a registered client.
package authorization

import (
	"maps"
	"time"

	"github.com/jrsteele09/go-token-authority/internal/audit"
	"github.com/jrsteele09/go-token-authority/token"
)

// SessionAuthorization is the persisted grant for one (client, principal) pair.
type SessionAuthorization struct {
	ID                 string         `json:"id"`
	RegisteredClientID string         `json:"registered_client_id"`
	PrincipalName      string         `json:"principal_name"`
	AccessToken        *token.Token   `json:"access_token"`
	RefreshToken       *token.Token   `json:"refresh_token,omitempty"`
	Attributes         map[string]any `json:"attributes,omitempty"`
	audit.Fields
}

// IsLive reports whether the access token is still valid at now. A record without an access
// token is never live.
func (s *SessionAuthorization) IsLive(now time.Time) bool {
	return s != nil && s.AccessToken != nil && s.AccessToken.ExpiresAt.After(now)
}

// Clone returns a deep copy so callers can modify a record without touching the stored one.
func (s *SessionAuthorization) Clone() *SessionAuthorization {
	if s == nil {
		return nil
	}
	c := *s
	if s.AccessToken != nil {
		at := *s.AccessToken
		c.AccessToken = &at
	}
	if s.RefreshToken != nil {
		rt := *s.RefreshToken
		c.RefreshToken = &rt
	}
	if s.Attributes != nil {
		c.Attributes = maps.Clone(s.Attributes)
	}
	return &c
}

// TokenValue returns the value of the token of the given type, or "" if the record has none.
func (s *SessionAuthorization) TokenValue(tokenType token.Type) string {
	var t *token.Token
	switch tokenType {
	case token.Access:
		t = s.AccessToken
	case token.Refresh:
		t = s.RefreshToken
	}
	if t == nil {
		return ""
	}
	return t.Value
}
