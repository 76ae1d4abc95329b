package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-authority/clients"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/oauth2"
	"github.com/jrsteele09/go-token-authority/token"
	"github.com/pkg/errors"
)

// AccessTokenParser verifies an access token and returns its claims. token.Manager implements it.
type AccessTokenParser interface {
	ParseAccessToken(rawToken string) (jwt.MapClaims, error)
}

var _ AccessTokenParser = (*token.Manager)(nil)

// UserInfo returns the profile behind a bearer access token. The token must still be the access
// token of its session; one replaced by a refresh or a new login is rejected even while its
// signature is valid. The client's scopes decide which fields are released.
func (as *AuthorizationService) UserInfo(ctx context.Context, accessValue string) (*oauth2.UserProfile, error) {
	accessValue = strings.TrimSpace(accessValue)
	if accessValue == "" {
		return nil, errors.Wrap(autherrors.ErrInvalidAccessToken, "[UserInfo] no access token")
	}

	var subject string
	if as.parser != nil {
		claims, err := as.parser.ParseAccessToken(accessValue)
		if err != nil {
			return nil, errors.Wrapf(autherrors.ErrInvalidAccessToken, "[UserInfo] %v", err)
		}
		subject, _ = claims.GetSubject()
	}

	record, err := as.repos.Authorizations.FindByTokenValue(ctx, accessValue, token.Access)
	if err != nil {
		return nil, errors.Wrap(err, "[UserInfo] FindByTokenValue")
	}
	if record == nil || record.AccessToken == nil || record.AccessToken.IsExpired(as.nowTime()) {
		return nil, errors.Wrap(autherrors.ErrInvalidAccessToken, "[UserInfo] no live session holds the token")
	}
	if as.parser != nil && subject != record.PrincipalName {
		return nil, errors.Wrap(autherrors.ErrInvalidAccessToken, "[UserInfo] subject does not match the session")
	}

	client, err := as.repos.Clients.GetByID(ctx, record.RegisteredClientID)
	if err != nil {
		return nil, errors.Wrap(err, "[UserInfo] GetByID")
	}
	if client == nil {
		return nil, errors.Wrapf(autherrors.ErrUnknownClient, "[UserInfo] client %q", record.RegisteredClientID)
	}

	profile := as.userProfile(ctx, record.PrincipalName)
	if profile == nil {
		// Upstream OIDC principals need not have a local account.
		profile = &oauth2.UserProfile{Email: record.PrincipalName}
	}
	if !client.HasScope(clients.ScopeEmail) {
		profile.Email = ""
		profile.Verified = false
	}
	if !client.HasScope(clients.ScopeProfile) {
		profile.Username = ""
		profile.FirstName = ""
		profile.LastName = ""
	}
	return profile, nil
}
