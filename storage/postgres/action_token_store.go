package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-token-authority/actiontoken"
)

var _ actiontoken.Store = (*ActionTokenStore)(nil)

// ActionTokenStore implements actiontoken.Store on the action_tokens table.
type ActionTokenStore struct {
	pool *pgxpool.Pool
}

func NewActionTokenStore(pool *pgxpool.Pool) *ActionTokenStore {
	return &ActionTokenStore{pool: pool}
}

func (s *ActionTokenStore) Create(ctx context.Context, token *actiontoken.ActionToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO action_tokens (
			id, user_id, token_value, purpose,
			requested_at, activated_at, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		token.ID, token.UserID, token.TokenValue, string(token.Purpose),
		token.RequestedAt, token.ActivatedAt, string(token.Status),
		token.CreatedAt, token.UpdatedAt,
	)
	if isUniqueViolation(err, "action_tokens_token_value_key") {
		return actiontoken.ErrDuplicateToken
	}
	if err != nil {
		return fmt.Errorf("[ActionTokenStore.Create] %w", err)
	}
	return nil
}

func (s *ActionTokenStore) GetByValue(ctx context.Context, value string) (*actiontoken.ActionToken, error) {
	var (
		t       actiontoken.ActionToken
		purpose string
		status  string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT
			id, user_id, token_value, purpose,
			requested_at, activated_at, status,
			created_at, updated_at
		FROM action_tokens
		WHERE token_value = $1
	`, value).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenValue,
		&purpose,
		&t.RequestedAt,
		&t.ActivatedAt,
		&status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[ActionTokenStore.GetByValue] %w", err)
	}

	t.Purpose = actiontoken.Purpose(purpose)
	t.Status = actiontoken.Status(status)
	return &t, nil
}

// MarkActivated relies on the row lock taken by UPDATE: concurrent callers re-evaluate the
// status predicate after the winner commits and match nothing.
func (s *ActionTokenStore) MarkActivated(ctx context.Context, value string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE action_tokens
		SET status = 'ACTIVATED', activated_at = $2, updated_at = $2
		WHERE token_value = $1 AND status = 'REQUESTED'
	`, value, at)
	if err != nil {
		return false, fmt.Errorf("[ActionTokenStore.MarkActivated] %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
