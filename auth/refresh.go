package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/identity"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/metrics"
	"github.com/jrsteele09/go-token-authority/oauth2"
	"github.com/jrsteele09/go-token-authority/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Refresh issues a new access token for the session holding refreshValue. The refresh token
// itself is returned unchanged.
func (as *AuthorizationService) Refresh(ctx context.Context, refreshValue string) (*oauth2.TokenResponse, error) {
	response, err := as.refresh(ctx, refreshValue)
	if err != nil {
		as.metrics.Refresh(metrics.OutcomeFailed)
		return nil, err
	}
	as.metrics.Refresh(metrics.OutcomeSuccess)
	return response, nil
}

func (as *AuthorizationService) refresh(ctx context.Context, refreshValue string) (*oauth2.TokenResponse, error) {
	refreshValue = strings.TrimSpace(refreshValue)
	if refreshValue == "" {
		return nil, errors.Wrap(autherrors.ErrInvalidRefreshToken, "[Refresh] no refresh token")
	}

	record, err := as.repos.Authorizations.FindByTokenValue(ctx, refreshValue, token.Refresh)
	if err != nil {
		return nil, errors.Wrap(err, "[Refresh] FindByTokenValue")
	}
	if record == nil {
		return nil, errors.Wrap(autherrors.ErrInvalidRefreshToken, "[Refresh] no session holds the token")
	}

	client, err := as.repos.Clients.GetByID(ctx, record.RegisteredClientID)
	if err != nil {
		return nil, errors.Wrap(err, "[Refresh] GetByID")
	}
	if client == nil {
		return nil, errors.Wrapf(autherrors.ErrUnknownClient, "[Refresh] client %q", record.RegisteredClientID)
	}

	now := as.nowTime()
	if record.RefreshToken == nil || record.RefreshToken.IsExpired(now) {
		return nil, errors.Wrap(autherrors.ErrInvalidRefreshToken, "[Refresh] refresh token expired")
	}

	// The refresh token stands in for the credentials; they are not checked again.
	principal := identity.Principal{Name: record.PrincipalName}

	accessToken, err := as.issuer.MintAccessToken(ctx, principal, client)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrTokenGenerationFailure, "[Refresh] MintAccessToken: %v", err)
	}
	if accessToken == nil || accessToken.Value == "" {
		return nil, errors.Wrap(autherrors.ErrTokenGenerationFailure, "[Refresh] empty access token")
	}

	updated := record.Clone()
	updated.AccessToken = accessToken
	updated.Touch(now)

	if err := as.repos.Authorizations.Save(ctx, updated); err != nil {
		if errors.Is(err, authorization.ErrConflict) {
			// A new login replaced this session while we were minting.
			return nil, errors.Wrap(autherrors.ErrInvalidRefreshToken, "[Refresh] session was replaced")
		}
		return nil, errors.Wrap(err, "[Refresh] Save")
	}

	log.Debug().Str("client", client.ClientID).Str("principal", record.PrincipalName).Str("session", record.ID).Msg("refreshed access token")
	return as.tokenResponse(ctx, updated, now), nil
}
