package actiontoken

import (
	"context"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/metrics"
	"github.com/jrsteele09/go-token-authority/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultTTL           = 24 * time.Hour
	defaultTokenLength   = 32
	maxGenerateAttempts  = 3
	unknownPurposeMetric = "unknown"
)

// Tracker issues action tokens and consumes each of them at most once.
type Tracker struct {
	store       Store
	ttls        map[Purpose]time.Duration
	defaultTTL  time.Duration
	tokenLength int
	metrics     *metrics.Metrics
	nowFunc     func() time.Time
}

type TrackerOption func(*Tracker)

// WithTTL sets how long tokens of purpose stay consumable.
func WithTTL(purpose Purpose, ttl time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.ttls[purpose] = ttl
	}
}

// WithDefaultTTL applies to purposes without their own WithTTL.
func WithDefaultTTL(ttl time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.defaultTTL = ttl
	}
}

// WithTokenLength sets the number of random bytes in a token value.
func WithTokenLength(byteLength int) TrackerOption {
	return func(t *Tracker) {
		t.tokenLength = byteLength
	}
}

func WithMetrics(m *metrics.Metrics) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func WithNowFunc(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.nowFunc = now
	}
}

func NewTracker(store Store, options ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("[NewTracker] store is required")
	}

	t := &Tracker{
		store:       store,
		ttls:        make(map[Purpose]time.Duration),
		defaultTTL:  defaultTTL,
		tokenLength: defaultTokenLength,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// TTL returns how long tokens of purpose stay consumable.
func (t *Tracker) TTL(purpose Purpose) time.Duration {
	if ttl, ok := t.ttls[purpose]; ok && ttl > 0 {
		return ttl
	}
	return t.defaultTTL
}

// Request issues a new token for userID. Earlier tokens for the same user stay valid.
func (t *Tracker) Request(ctx context.Context, userID string, purpose Purpose) (*ActionToken, error) {
	if userID == "" {
		return nil, errors.New("[Tracker.Request] userID is required")
	}

	for attempt := 1; ; attempt++ {
		value, err := token.GenerateOpaqueValue(t.tokenLength)
		if err != nil {
			return nil, errors.Wrap(err, "[Tracker.Request] generate value")
		}

		now := t.nowFunc()
		actionToken := &ActionToken{
			ID:          uuid.New().String(),
			UserID:      userID,
			TokenValue:  value,
			Purpose:     purpose,
			RequestedAt: now,
			Status:      StatusRequested,
		}
		actionToken.Touch(now)

		err = t.store.Create(ctx, actionToken)
		if err == nil {
			t.metrics.ActionToken(string(purpose), metrics.OperationRequest, metrics.OutcomeSuccess)
			log.Debug().Str("user", userID).Str("purpose", string(purpose)).Msg("action token requested")
			return actionToken, nil
		}
		if !errors.Is(err, ErrDuplicateToken) || attempt >= maxGenerateAttempts {
			t.metrics.ActionToken(string(purpose), metrics.OperationRequest, metrics.OutcomeFailed)
			return nil, errors.Wrap(err, "[Tracker.Request] Create")
		}
	}
}

// ValidateAndConsume consumes a token of any purpose and returns the user it was issued to.
func (t *Tracker) ValidateAndConsume(ctx context.Context, tokenValue string) (string, error) {
	return t.consume(ctx, "", tokenValue)
}

// ValidateAndConsumeFor consumes a token only if it was issued for purpose. Tokens issued for
// anything else are reported as not found.
func (t *Tracker) ValidateAndConsumeFor(ctx context.Context, purpose Purpose, tokenValue string) (string, error) {
	return t.consume(ctx, purpose, tokenValue)
}

func (t *Tracker) consume(ctx context.Context, purpose Purpose, tokenValue string) (string, error) {
	metricPurpose := string(purpose)
	if metricPurpose == "" {
		metricPurpose = unknownPurposeMetric
	}

	actionToken, err := t.store.GetByValue(ctx, tokenValue)
	if err != nil {
		t.metrics.ActionToken(metricPurpose, metrics.OperationConsume, metrics.OutcomeFailed)
		return "", errors.Wrap(err, "[Tracker.Consume] GetByValue")
	}
	if actionToken == nil || (purpose != "" && actionToken.Purpose != purpose) {
		t.metrics.ActionToken(metricPurpose, metrics.OperationConsume, metrics.OutcomeNotFound)
		return "", autherrors.ErrTokenNotFound
	}
	metricPurpose = string(actionToken.Purpose)

	if actionToken.Status == StatusActivated {
		t.metrics.ActionToken(metricPurpose, metrics.OperationConsume, metrics.OutcomeConsumed)
		return "", autherrors.ErrTokenAlreadyConsumed
	}

	now := t.nowFunc()
	if actionToken.IsExpired(now, t.TTL(actionToken.Purpose)) {
		t.metrics.ActionToken(metricPurpose, metrics.OperationConsume, metrics.OutcomeExpired)
		return "", autherrors.ErrTokenExpired
	}

	activated, err := t.store.MarkActivated(ctx, tokenValue, now)
	if err != nil {
		t.metrics.ActionToken(metricPurpose, metrics.OperationConsume, metrics.OutcomeFailed)
		return "", errors.Wrap(err, "[Tracker.Consume] MarkActivated")
	}
	if !activated {
		// Someone else consumed it between the read and the update.
		t.metrics.ActionToken(metricPurpose, metrics.OperationConsume, metrics.OutcomeConsumed)
		return "", autherrors.ErrTokenAlreadyConsumed
	}

	t.metrics.ActionToken(metricPurpose, metrics.OperationConsume, metrics.OutcomeSuccess)
	log.Debug().Str("user", actionToken.UserID).Str("purpose", metricPurpose).Msg("action token consumed")
	return actionToken.UserID, nil
}
