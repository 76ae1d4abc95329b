package auth

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/clients"
	"github.com/jrsteele09/go-token-authority/identity"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/metrics"
	"github.com/jrsteele09/go-token-authority/oauth2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Login returns tokens for an already authenticated principal on the given client. A live
// session for the pair is reused as is; otherwise a new access and refresh token are minted and
// stored with the request attributes.
func (as *AuthorizationService) Login(ctx context.Context, clientID string, principal identity.Principal, attributes map[string]any) (*oauth2.TokenResponse, error) {
	response, outcome, err := as.login(ctx, clientID, principal, attributes)
	if err != nil {
		as.metrics.Login(metrics.OutcomeFailed)
		return nil, err
	}
	as.metrics.Login(outcome)
	return response, nil
}

func (as *AuthorizationService) login(ctx context.Context, clientID string, principal identity.Principal, attributes map[string]any) (*oauth2.TokenResponse, string, error) {
	if principal.Name == "" {
		return nil, "", errors.Wrap(autherrors.ErrInvalidCredentials, "[Login] principal name is required")
	}

	client, err := as.repos.Clients.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, "", errors.Wrap(err, "[Login] GetByClientID")
	}
	if client == nil {
		return nil, "", errors.Wrapf(autherrors.ErrUnknownClient, "[Login] client %q", clientID)
	}

	for attempt := 1; ; attempt++ {
		existing, err := as.repos.Authorizations.FindByClientAndPrincipal(ctx, client.ID, principal.Name)
		if err != nil {
			return nil, "", errors.Wrap(err, "[Login] FindByClientAndPrincipal")
		}

		now := as.nowTime()
		if existing.IsLive(now) {
			log.Debug().Str("client", client.ClientID).Str("principal", principal.Name).Msg("reusing live session")
			return as.tokenResponse(ctx, existing, now), metrics.OutcomeReused, nil
		}

		record, err := as.mintSession(ctx, client, principal, attributes, now)
		if err != nil {
			return nil, "", err
		}

		err = as.repos.Authorizations.Save(ctx, record)
		if err == nil {
			log.Debug().Str("client", client.ClientID).Str("principal", principal.Name).Str("session", record.ID).Msg("minted session")
			return as.tokenResponse(ctx, record, now), metrics.OutcomeMinted, nil
		}
		if !errors.Is(err, authorization.ErrConflict) || attempt >= as.maxLoginAttempts {
			return nil, "", errors.Wrap(err, "[Login] Save")
		}

		// Another login for the same pair stored its session first; reuse it.
		log.Debug().Str("principal", principal.Name).Int("attempt", attempt).Msg("login raced, retrying lookup")
	}
}

func (as *AuthorizationService) mintSession(ctx context.Context, client *clients.Client, principal identity.Principal, attributes map[string]any, now time.Time) (*authorization.SessionAuthorization, error) {
	accessToken, err := as.issuer.MintAccessToken(ctx, principal, client)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrTokenGenerationFailure, "[Login] MintAccessToken: %v", err)
	}
	if accessToken == nil || accessToken.Value == "" {
		return nil, errors.Wrap(autherrors.ErrTokenGenerationFailure, "[Login] empty access token")
	}

	refreshToken, err := as.issuer.MintRefreshToken(ctx, principal, client)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrTokenGenerationFailure, "[Login] MintRefreshToken: %v", err)
	}
	if refreshToken == nil || refreshToken.Value == "" {
		return nil, errors.Wrap(autherrors.ErrTokenGenerationFailure, "[Login] empty refresh token")
	}

	record := &authorization.SessionAuthorization{
		ID:                 uuid.New().String(),
		RegisteredClientID: client.ID,
		PrincipalName:      principal.Name,
		AccessToken:        accessToken,
		RefreshToken:       refreshToken,
		Attributes:         maps.Clone(attributes),
	}
	record.Touch(now)
	return record, nil
}
