package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// OIDCVerifier authenticates users against an upstream OpenID Connect provider, either from an
// ID token the client already holds or by exchanging an authorization code for one.
type OIDCVerifier struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

var _ Verifier = (*OIDCVerifier)(nil)

// NewOIDCVerifier discovers the provider at issuer and builds a verifier for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewOIDCVerifier] discover provider %s", issuer)
	}

	return NewOIDCVerifierFrom(
		provider.Verifier(&oidc.Config{ClientID: clientID}),
		&oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	), nil
}

// NewOIDCVerifierFrom wires an existing ID token verifier. oauth2Config may be nil, in which
// case authorization codes are rejected.
func NewOIDCVerifierFrom(verifier *oidc.IDTokenVerifier, oauth2Config *oauth2.Config) *OIDCVerifier {
	return &OIDCVerifier{
		verifier:     verifier,
		oauth2Config: oauth2Config,
	}
}

func (v *OIDCVerifier) Authenticate(ctx context.Context, credentials Credentials) (Principal, error) {
	rawIDToken := strings.TrimSpace(credentials.IDToken)
	if rawIDToken == "" && credentials.Code != "" {
		var err error
		if rawIDToken, err = v.exchange(ctx, credentials.Code); err != nil {
			return Principal{}, err
		}
	}
	if rawIDToken == "" {
		return Principal{}, fmt.Errorf("%w: no id token presented", autherrors.ErrInvalidCredentials)
	}

	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: id token verification failed: %v", autherrors.ErrInvalidCredentials, err)
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Principal{}, fmt.Errorf("%w: unreadable claims: %v", autherrors.ErrInvalidCredentials, err)
	}
	if claims.Email == "" {
		return Principal{}, fmt.Errorf("%w: id token has no email claim", autherrors.ErrInvalidCredentials)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return Principal{}, fmt.Errorf("%w: email not verified by provider", autherrors.ErrInvalidCredentials)
	}

	return Principal{
		Name:        strings.ToLower(claims.Email),
		Subject:     claims.Sub,
		DisplayName: claims.Name,
	}, nil
}

func (v *OIDCVerifier) exchange(ctx context.Context, code string) (string, error) {
	if v.oauth2Config == nil {
		return "", fmt.Errorf("%w: code exchange not configured", autherrors.ErrInvalidCredentials)
	}

	oauth2Token, err := v.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: code exchange failed: %v", autherrors.ErrInvalidCredentials, err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return "", fmt.Errorf("%w: no id token in token response", autherrors.ErrInvalidCredentials)
	}
	return rawIDToken, nil
}
