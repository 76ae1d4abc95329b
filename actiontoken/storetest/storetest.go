// Package storetest is a behavioural suite every actiontoken.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-authority/actiontoken"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/stretchr/testify/require"
)

// NewStoreFunc builds an empty store.
type NewStoreFunc func(t *testing.T) actiontoken.Store

var requestedAt = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore NewStoreFunc) {
	tests := map[string]func(t *testing.T, store actiontoken.Store){
		"CreateAndGet":                     testCreateAndGet,
		"DuplicateValueRejected":           testDuplicate,
		"MarkActivatedOnlyOnce":            testMarkActivatedOnce,
		"MarkActivatedIgnoresExpired":      testMarkActivatedIgnoresExpired,
		"MarkActivatedUnknownValue":        testMarkActivatedUnknown,
		"ConcurrentMarkActivatedOneWinner": testConcurrentMarkActivated,
		"ConcurrentConsumeThroughTracker":  testConcurrentConsume,
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test(t, newStore(t))
		})
	}
}

// NewToken builds a REQUESTED token for userID requested at a fixed instant.
func NewToken(userID string, purpose actiontoken.Purpose) *actiontoken.ActionToken {
	token := &actiontoken.ActionToken{
		ID:          uuid.New().String(),
		UserID:      userID,
		TokenValue:  "tv-" + uuid.New().String(),
		Purpose:     purpose,
		RequestedAt: requestedAt,
		Status:      actiontoken.StatusRequested,
	}
	token.Touch(requestedAt)
	return token
}

func testCreateAndGet(t *testing.T, store actiontoken.Store) {
	ctx := context.Background()

	missing, err := store.GetByValue(ctx, "unknown")
	require.NoError(t, err)
	require.Nil(t, missing)

	token := NewToken("42", actiontoken.PurposeActivation)
	require.NoError(t, store.Create(ctx, token))

	found, err := store.GetByValue(ctx, token.TokenValue)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, token.ID, found.ID)
	require.Equal(t, "42", found.UserID)
	require.Equal(t, actiontoken.PurposeActivation, found.Purpose)
	require.Equal(t, actiontoken.StatusRequested, found.Status)
	require.True(t, requestedAt.Equal(found.RequestedAt))
	require.Nil(t, found.ActivatedAt)
}

func testDuplicate(t *testing.T, store actiontoken.Store) {
	ctx := context.Background()
	token := NewToken("42", actiontoken.PurposeActivation)
	require.NoError(t, store.Create(ctx, token))

	dup := NewToken("43", actiontoken.PurposePasswordReset)
	dup.TokenValue = token.TokenValue
	require.ErrorIs(t, store.Create(ctx, dup), actiontoken.ErrDuplicateToken)

	found, err := store.GetByValue(ctx, token.TokenValue)
	require.NoError(t, err)
	require.Equal(t, "42", found.UserID, "the original token is untouched")
}

func testMarkActivatedOnce(t *testing.T, store actiontoken.Store) {
	ctx := context.Background()
	token := NewToken("42", actiontoken.PurposeActivation)
	require.NoError(t, store.Create(ctx, token))

	at := requestedAt.Add(time.Minute)
	ok, err := store.MarkActivated(ctx, token.TokenValue, at)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.MarkActivated(ctx, token.TokenValue, at.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, ok)

	found, err := store.GetByValue(ctx, token.TokenValue)
	require.NoError(t, err)
	require.Equal(t, actiontoken.StatusActivated, found.Status)
	require.NotNil(t, found.ActivatedAt)
	require.True(t, at.Equal(*found.ActivatedAt), "the first activation time is kept")
}

func testMarkActivatedIgnoresExpired(t *testing.T, store actiontoken.Store) {
	ctx := context.Background()
	token := NewToken("42", actiontoken.PurposePasswordReset)
	token.Status = actiontoken.StatusExpired
	require.NoError(t, store.Create(ctx, token))

	ok, err := store.MarkActivated(ctx, token.TokenValue, requestedAt.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, ok)

	found, err := store.GetByValue(ctx, token.TokenValue)
	require.NoError(t, err)
	require.Equal(t, actiontoken.StatusExpired, found.Status)
	require.Nil(t, found.ActivatedAt)
}

func testMarkActivatedUnknown(t *testing.T, store actiontoken.Store) {
	ok, err := store.MarkActivated(context.Background(), "unknown", requestedAt)
	require.NoError(t, err)
	require.False(t, ok)
}

func testConcurrentMarkActivated(t *testing.T, store actiontoken.Store) {
	ctx := context.Background()
	token := NewToken("42", actiontoken.PurposeActivation)
	require.NoError(t, store.Create(ctx, token))

	const n = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		fails []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := store.MarkActivated(ctx, token.TokenValue, requestedAt.Add(time.Minute))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fails = append(fails, err)
			} else if ok {
				wins++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, fails)
	require.Equal(t, 1, wins)
}

func testConcurrentConsume(t *testing.T, store actiontoken.Store) {
	ctx := context.Background()
	tracker, err := actiontoken.NewTracker(store, actiontoken.WithNowFunc(func() time.Time {
		return requestedAt.Add(time.Minute)
	}))
	require.NoError(t, err)

	token := NewToken("42", actiontoken.PurposeActivation)
	require.NoError(t, store.Create(ctx, token))

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		consumed  int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			userID, err := tracker.ValidateAndConsume(ctx, token.TokenValue)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && userID == "42":
				successes++
			case errors.Is(err, autherrors.ErrTokenAlreadyConsumed):
				consumed++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Equal(t, 1, successes)
	require.Equal(t, n-1, consumed)
}
