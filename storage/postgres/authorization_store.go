package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/token"
)

var _ authorization.Store = (*AuthorizationStore)(nil)

const selectAuthorization = `
	SELECT
		id, registered_client_id, principal_name,
		access_token_value, access_token_issued_at, access_token_expires_at,
		refresh_token_value, refresh_token_issued_at, refresh_token_expires_at,
		attributes, created_at, updated_at
	FROM session_authorizations
`

// AuthorizationStore implements authorization.Store on the session_authorizations table.
type AuthorizationStore struct {
	pool    *pgxpool.Pool
	nowFunc func() time.Time
}

type AuthorizationStoreOption func(*AuthorizationStore)

// WithNowFunc sets the clock used to decide whether a stored record is still live.
func WithNowFunc(now func() time.Time) AuthorizationStoreOption {
	return func(s *AuthorizationStore) {
		s.nowFunc = now
	}
}

func NewAuthorizationStore(pool *pgxpool.Pool, options ...AuthorizationStoreOption) *AuthorizationStore {
	s := &AuthorizationStore{pool: pool, nowFunc: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *AuthorizationStore) FindByClientAndPrincipal(ctx context.Context, registeredClientID, principalName string) (*authorization.SessionAuthorization, error) {
	row := s.pool.QueryRow(ctx, selectAuthorization+`WHERE registered_client_id = $1 AND principal_name = $2`, registeredClientID, principalName)
	return scanAuthorization(row)
}

func (s *AuthorizationStore) FindByTokenValue(ctx context.Context, value string, tokenType token.Type) (*authorization.SessionAuthorization, error) {
	var column string
	switch tokenType {
	case token.Access:
		column = "access_token_value"
	case token.Refresh:
		column = "refresh_token_value"
	default:
		return nil, nil
	}

	row := s.pool.QueryRow(ctx, selectAuthorization+`WHERE `+column+` = $1`, value)
	return scanAuthorization(row)
}

// Save runs in one transaction: the row holding the (client, principal) slot is locked, a stale
// holder with another id is deleted, a live one aborts with ErrConflict, and the record is then
// upserted by id. Two first-time inserts racing for an empty slot meet at the unique constraint,
// which is also reported as ErrConflict.
func (s *AuthorizationStore) Save(ctx context.Context, record *authorization.SessionAuthorization) error {
	if record == nil || record.ID == "" || record.AccessToken == nil {
		return errors.New("[AuthorizationStore.Save] record id and access token are required")
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			existingID      string
			existingExpires time.Time
		)
		err := tx.QueryRow(ctx, `
			SELECT id, access_token_expires_at
			FROM session_authorizations
			WHERE registered_client_id = $1 AND principal_name = $2
			FOR UPDATE
		`, record.RegisteredClientID, record.PrincipalName).Scan(&existingID, &existingExpires)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		case existingID != record.ID:
			if existingExpires.After(s.nowFunc()) {
				return authorization.ErrConflict
			}
			if _, err := tx.Exec(ctx, `DELETE FROM session_authorizations WHERE id = $1`, existingID); err != nil {
				return err
			}
		}

		var refreshValue *string
		var refreshIssued, refreshExpires *time.Time
		if record.RefreshToken != nil {
			refreshValue = &record.RefreshToken.Value
			refreshIssued = &record.RefreshToken.IssuedAt
			refreshExpires = &record.RefreshToken.ExpiresAt
		}
		attributes := record.Attributes
		if attributes == nil {
			attributes = map[string]any{}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO session_authorizations (
				id, registered_client_id, principal_name,
				access_token_value, access_token_issued_at, access_token_expires_at,
				refresh_token_value, refresh_token_issued_at, refresh_token_expires_at,
				attributes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				registered_client_id     = EXCLUDED.registered_client_id,
				principal_name           = EXCLUDED.principal_name,
				access_token_value       = EXCLUDED.access_token_value,
				access_token_issued_at   = EXCLUDED.access_token_issued_at,
				access_token_expires_at  = EXCLUDED.access_token_expires_at,
				refresh_token_value      = EXCLUDED.refresh_token_value,
				refresh_token_issued_at  = EXCLUDED.refresh_token_issued_at,
				refresh_token_expires_at = EXCLUDED.refresh_token_expires_at,
				attributes               = EXCLUDED.attributes,
				updated_at               = EXCLUDED.updated_at
		`,
			record.ID, record.RegisteredClientID, record.PrincipalName,
			record.AccessToken.Value, record.AccessToken.IssuedAt, record.AccessToken.ExpiresAt,
			refreshValue, refreshIssued, refreshExpires,
			attributes, record.CreatedAt, record.UpdatedAt,
		)
		return err
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, authorization.ErrConflict),
		isUniqueViolation(err, "session_authorizations_client_principal_key"):
		return authorization.ErrConflict
	default:
		return fmt.Errorf("[AuthorizationStore.Save] %w", err)
	}
}

func scanAuthorization(row pgx.Row) (*authorization.SessionAuthorization, error) {
	var (
		r              authorization.SessionAuthorization
		access         token.Token
		refreshValue   *string
		refreshIssued  *time.Time
		refreshExpires *time.Time
	)
	err := row.Scan(
		&r.ID,
		&r.RegisteredClientID,
		&r.PrincipalName,
		&access.Value,
		&access.IssuedAt,
		&access.ExpiresAt,
		&refreshValue,
		&refreshIssued,
		&refreshExpires,
		&r.Attributes,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[AuthorizationStore] scan: %w", err)
	}

	r.AccessToken = &access
	if refreshValue != nil {
		r.RefreshToken = &token.Token{Value: *refreshValue}
		if refreshIssued != nil {
			r.RefreshToken.IssuedAt = *refreshIssued
		}
		if refreshExpires != nil {
			r.RefreshToken.ExpiresAt = *refreshExpires
		}
	}
	return &r, nil
}
