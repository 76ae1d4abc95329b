package authorization_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/token"
	"github.com/stretchr/testify/require"
)

func TestIsLive(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	record := &authorization.SessionAuthorization{
		AccessToken: &token.Token{Value: "a", IssuedAt: now.Add(-time.Minute), ExpiresAt: now.Add(time.Minute)},
	}

	require.True(t, record.IsLive(now))
	require.False(t, record.IsLive(now.Add(time.Minute)), "expiry instant itself is not live")
	require.False(t, (&authorization.SessionAuthorization{}).IsLive(now))

	var missing *authorization.SessionAuthorization
	require.False(t, missing.IsLive(now))
}

func TestCloneIsDeep(t *testing.T) {
	record := &authorization.SessionAuthorization{
		ID:           "id",
		AccessToken:  &token.Token{Value: "a"},
		RefreshToken: &token.Token{Value: "r"},
		Attributes:   map[string]any{"k": "v"},
	}

	c := record.Clone()
	c.AccessToken.Value = "changed"
	c.RefreshToken.Value = "changed"
	c.Attributes["k"] = "changed"

	require.Equal(t, "a", record.AccessToken.Value)
	require.Equal(t, "r", record.RefreshToken.Value)
	require.Equal(t, "v", record.Attributes["k"])
	require.Equal(t, "a", record.TokenValue(token.Access))
	require.Equal(t, "r", record.TokenValue(token.Refresh))
}
