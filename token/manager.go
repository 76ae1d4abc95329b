package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-authority/clients"
	"github.com/jrsteele09/go-token-authority/identity"
	"github.com/pkg/errors"
)

// Manager is the default Issuer: access tokens are signed JWTs, refresh tokens are random
// opaque values.
type Manager struct {
	signer             Signer
	issuer             string
	audience           string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	refreshTokenLength int
	nowFunc            func() time.Time
}

var _ Issuer = (*Manager)(nil)

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry time.Duration, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithRefreshTokenLength(byteLength int) ManagerOption {
	return func(m *Manager) {
		m.refreshTokenLength = byteLength
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.refreshTokenLength == 0 {
		m.refreshTokenLength = 32
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

func (m *Manager) MintAccessToken(_ context.Context, principal identity.Principal, client *clients.Client) (*Token, error) {
	if principal.Name == "" || client == nil {
		return nil, errors.New("Manager.MintAccessToken principal and client are required")
	}

	issuedAt := m.nowFunc()
	expiresAt := issuedAt.Add(m.accessTokenExpiry)

	claims := jwt.MapClaims{
		"iss":       m.issuer,            // The issuer of the token
		"sub":       principal.Name,      // The subject, the principal the session belongs to
		"aud":       m.audience,          // The audience for which the token is intended
		"client_id": client.ClientID,     // The client the session is bound to
		"iat":       issuedAt.Unix(),     // Issued At: the time at which the token was issued
		"exp":       expiresAt.Unix(),    // Expiry: when the token will expire
		"jti":       uuid.New().String(), // Unique token ID, keeps every value distinct
	}
	if scope := client.ScopeString(); scope != "" {
		claims["scope"] = scope
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.MintAccessToken Sign")
	}

	return &Token{
		Value:     signed,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (m *Manager) MintRefreshToken(_ context.Context, principal identity.Principal, client *clients.Client) (*Token, error) {
	if principal.Name == "" || client == nil {
		return nil, errors.New("Manager.MintRefreshToken principal and client are required")
	}

	value, err := GenerateOpaqueValue(m.refreshTokenLength)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.MintRefreshToken")
	}

	issuedAt := m.nowFunc()
	return &Token{
		Value:     value,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(m.refreshTokenExpiry),
	}, nil
}

// ParseAccessToken verifies an access token's signature and expiry and returns its claims.
func (m *Manager) ParseAccessToken(rawToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.ParseAccessToken")
	}
	return claims, nil
}
