package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-token-authority/actiontoken"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "token_authority:action_token:"
	maxWatchRetries  = 4
)

var _ actiontoken.Store = (*ActionTokenStore)(nil)

// ActionTokenStore implements actiontoken.Store with one JSON document per token value.
type ActionTokenStore struct {
	client    goredis.UniversalClient
	keyPrefix string
	retention time.Duration
}

type ActionTokenStoreOption func(*ActionTokenStore)

func WithKeyPrefix(prefix string) ActionTokenStoreOption {
	return func(s *ActionTokenStore) {
		s.keyPrefix = prefix
	}
}

// WithRetention sets how long a token document is kept in Redis. It must outlive the longest
// action token TTL or expired tokens will be reported as not found. Zero keeps documents forever.
func WithRetention(d time.Duration) ActionTokenStoreOption {
	return func(s *ActionTokenStore) {
		s.retention = d
	}
}

func NewActionTokenStore(client goredis.UniversalClient, options ...ActionTokenStoreOption) *ActionTokenStore {
	s := &ActionTokenStore{client: client, keyPrefix: defaultKeyPrefix}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// actionTokenRecord is the stored document.
type actionTokenRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TokenValue  string     `json:"token_value"`
	Purpose     string     `json:"purpose"`
	RequestedAt time.Time  `json:"requested_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *ActionTokenStore) key(value string) string {
	return s.keyPrefix + value
}

func (s *ActionTokenStore) Create(ctx context.Context, token *actiontoken.ActionToken) error {
	data, err := json.Marshal(toRecord(token))
	if err != nil {
		return fmt.Errorf("[ActionTokenStore.Create] encode: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(token.TokenValue), data, s.retention).Result()
	if err != nil {
		return fmt.Errorf("[ActionTokenStore.Create] %w", err)
	}
	if !ok {
		return actiontoken.ErrDuplicateToken
	}
	return nil
}

func (s *ActionTokenStore) GetByValue(ctx context.Context, value string) (*actiontoken.ActionToken, error) {
	data, err := s.client.Get(ctx, s.key(value)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[ActionTokenStore.GetByValue] %w", err)
	}

	var record actionTokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("[ActionTokenStore.GetByValue] decode: %w", err)
	}
	return record.toActionToken(), nil
}

// MarkActivated watches the token key so that only one of several concurrent callers commits the
// REQUESTED to ACTIVATED transition. A caller whose transaction is aborted re-reads and finds the
// token already activated.
func (s *ActionTokenStore) MarkActivated(ctx context.Context, value string, at time.Time) (bool, error) {
	key := s.key(value)

	for i := 0; i < maxWatchRetries; i++ {
		activated := false

		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, goredis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}

			var record actionTokenRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
			if record.Status != string(actiontoken.StatusRequested) {
				return nil
			}

			activatedAt := at
			record.Status = string(actiontoken.StatusActivated)
			record.ActivatedAt = &activatedAt
			record.UpdatedAt = at
			updated, err := json.Marshal(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, updated, goredis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}
			activated = true
			return nil
		}, key)

		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("[ActionTokenStore.MarkActivated] %w", err)
		}
		return activated, nil
	}

	return false, fmt.Errorf("[ActionTokenStore.MarkActivated] gave up after %d contended attempts", maxWatchRetries)
}

func toRecord(t *actiontoken.ActionToken) actionTokenRecord {
	return actionTokenRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		TokenValue:  t.TokenValue,
		Purpose:     string(t.Purpose),
		RequestedAt: t.RequestedAt,
		ActivatedAt: t.ActivatedAt,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (r actionTokenRecord) toActionToken() *actiontoken.ActionToken {
	t := &actiontoken.ActionToken{
		ID:          r.ID,
		UserID:      r.UserID,
		TokenValue:  r.TokenValue,
		Purpose:     actiontoken.Purpose(r.Purpose),
		RequestedAt: r.RequestedAt,
		ActivatedAt: r.ActivatedAt,
		Status:      actiontoken.Status(r.Status),
	}
	t.CreatedAt = r.CreatedAt
	t.UpdatedAt = r.UpdatedAt
	return t
}
