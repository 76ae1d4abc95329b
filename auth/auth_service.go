package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/clients"
	"github.com/jrsteele09/go-token-authority/metrics"
	"github.com/jrsteele09/go-token-authority/oauth2"
	"github.com/jrsteele09/go-token-authority/token"
	"github.com/jrsteele09/go-token-authority/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultMaxLoginAttempts = 3

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Users          users.UserRepo      // Source of the profile attached to token responses
	Clients        clients.Repo        // Registered clients
	Authorizations authorization.Store // Session authorizations
}

// AuthorizationService issues, reuses and refreshes session tokens.
type AuthorizationService struct {
	repos            Repos             // All repository dependencies
	issuer           token.Issuer      // Mints access and refresh tokens
	parser           AccessTokenParser // Verifies presented access tokens, may be nil
	metrics          *metrics.Metrics  // Outcome counters, may be nil
	maxLoginAttempts int               // Lookup-and-save rounds before a login gives up on a race
	nowTime          func() time.Time  // nowTime function (injectable for testing)
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithMetrics records login and refresh outcomes.
func WithMetrics(m *metrics.Metrics) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.metrics = m
	}
}

// WithAccessTokenParser verifies the signature and expiry of access tokens presented to UserInfo.
func WithAccessTokenParser(parser AccessTokenParser) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.parser = parser
	}
}

// WithMaxLoginAttempts bounds how often a login that lost a race re-reads the winning session.
func WithMaxLoginAttempts(attempts int) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		if attempts > 0 {
			as.maxLoginAttempts = attempts
		}
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewAuthorizationService(
	repos Repos,
	issuer token.Issuer,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	// Validate required parameters
	if repos.Users == nil {
		return nil, errors.New("[NewAuthorizationService] Users repo is required")
	}
	if repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationService] Clients repo is required")
	}
	if repos.Authorizations == nil {
		return nil, errors.New("[NewAuthorizationService] Authorizations store is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewAuthorizationService] issuer is required")
	}

	authService := &AuthorizationService{
		repos:            repos,
		issuer:           issuer,
		maxLoginAttempts: defaultMaxLoginAttempts,
		nowTime:          time.Now,
	}

	// Apply optional configuration
	for _, opt := range options {
		opt(authService)
	}

	return authService, nil
}

// tokenResponse builds the response for a stored session, attaching the principal's profile
// when the user repo knows them.
func (as *AuthorizationService) tokenResponse(ctx context.Context, record *authorization.SessionAuthorization, now time.Time) *oauth2.TokenResponse {
	response := &oauth2.TokenResponse{
		AccessToken: record.AccessToken.Value,
		TokenType:   oauth2.TokenType,
		ExpiresIn:   record.AccessToken.ExpiresIn(now),
		User:        as.userProfile(ctx, record.PrincipalName),
	}
	if record.RefreshToken != nil {
		response.RefreshToken = record.RefreshToken.Value
	}
	return response
}

func (as *AuthorizationService) userProfile(ctx context.Context, principalName string) *oauth2.UserProfile {
	user, err := as.repos.Users.GetByEmail(ctx, principalName)
	if err != nil {
		log.Warn().Err(err).Str("principal", principalName).Msg("user profile lookup failed")
		return nil
	}
	return oauth2.NewUserProfile(user)
}
