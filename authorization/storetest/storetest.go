// Package storetest is a behavioural suite every authorization.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/token"
	"github.com/stretchr/testify/require"
)

// Clock is the instant a store under test must treat as now.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewStoreFunc builds an empty store that reads the time from clock.
type NewStoreFunc func(t *testing.T, clock *Clock) authorization.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore NewStoreFunc) {
	tests := map[string]func(t *testing.T, store authorization.Store, clock *Clock){
		"AbsentLookupsReturnNil":              testAbsentLookups,
		"SaveAndFind":                         testSaveAndFind,
		"OverwriteByIDReindexesAccessToken":   testOverwriteByID,
		"NewRecordConflictsWithLiveRecord":    testConflictWithLive,
		"NewRecordReplacesStaleRecord":        testReplaceStale,
		"ConcurrentInsertsLeaveOneRecord":     testConcurrentInserts,
		"ReturnedRecordsAreDetachedFromStore": testDetached,
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			clock := &Clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
			test(t, newStore(t, clock), clock)
		})
	}
}

// NewRecord builds a record whose access token lives for accessTTL from clock's now.
func NewRecord(clock *Clock, clientID, principal string, accessTTL time.Duration) *authorization.SessionAuthorization {
	now := clock.Now()
	r := &authorization.SessionAuthorization{
		ID:                 uuid.New().String(),
		RegisteredClientID: clientID,
		PrincipalName:      principal,
		AccessToken:        &token.Token{Value: "at-" + uuid.New().String(), IssuedAt: now, ExpiresAt: now.Add(accessTTL)},
		RefreshToken:       &token.Token{Value: "rt-" + uuid.New().String(), IssuedAt: now, ExpiresAt: now.Add(24 * time.Hour)},
		Attributes:         map[string]any{"login_source": "web"},
	}
	r.Touch(now)
	return r
}

func testAbsentLookups(t *testing.T, store authorization.Store, _ *Clock) {
	ctx := context.Background()

	r, err := store.FindByClientAndPrincipal(ctx, "client", "nobody")
	require.NoError(t, err)
	require.Nil(t, r)

	r, err = store.FindByTokenValue(ctx, "missing", token.Access)
	require.NoError(t, err)
	require.Nil(t, r)

	r, err = store.FindByTokenValue(ctx, "missing", token.Refresh)
	require.NoError(t, err)
	require.Nil(t, r)
}

func testSaveAndFind(t *testing.T, store authorization.Store, clock *Clock) {
	ctx := context.Background()
	record := NewRecord(clock, "client", "jane", time.Hour)
	require.NoError(t, store.Save(ctx, record))

	byKey, err := store.FindByClientAndPrincipal(ctx, "client", "jane")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	require.Equal(t, record.ID, byKey.ID)
	require.Equal(t, record.AccessToken.Value, byKey.AccessToken.Value)
	require.True(t, record.AccessToken.ExpiresAt.Equal(byKey.AccessToken.ExpiresAt))
	require.Equal(t, "web", byKey.Attributes["login_source"])

	byAccess, err := store.FindByTokenValue(ctx, record.AccessToken.Value, token.Access)
	require.NoError(t, err)
	require.Equal(t, record.ID, byAccess.ID)

	byRefresh, err := store.FindByTokenValue(ctx, record.RefreshToken.Value, token.Refresh)
	require.NoError(t, err)
	require.Equal(t, record.ID, byRefresh.ID)

	wrongType, err := store.FindByTokenValue(ctx, record.AccessToken.Value, token.Refresh)
	require.NoError(t, err)
	require.Nil(t, wrongType, "an access token value does not resolve as a refresh token")

	otherClient, err := store.FindByClientAndPrincipal(ctx, "other-client", "jane")
	require.NoError(t, err)
	require.Nil(t, otherClient)
}

func testOverwriteByID(t *testing.T, store authorization.Store, clock *Clock) {
	ctx := context.Background()
	record := NewRecord(clock, "client", "jane", time.Hour)
	require.NoError(t, store.Save(ctx, record))
	oldAccess := record.AccessToken.Value

	clock.Advance(2 * time.Hour)
	now := clock.Now()
	updated := record.Clone()
	updated.AccessToken = &token.Token{Value: "at-" + uuid.New().String(), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	updated.Touch(now)
	require.NoError(t, store.Save(ctx, updated), "an expired record can always be overwritten by its own id")

	gone, err := store.FindByTokenValue(ctx, oldAccess, token.Access)
	require.NoError(t, err)
	require.Nil(t, gone)

	current, err := store.FindByTokenValue(ctx, updated.AccessToken.Value, token.Access)
	require.NoError(t, err)
	require.Equal(t, record.ID, current.ID)

	byRefresh, err := store.FindByTokenValue(ctx, record.RefreshToken.Value, token.Refresh)
	require.NoError(t, err)
	require.Equal(t, updated.AccessToken.Value, byRefresh.AccessToken.Value)
}

func testConflictWithLive(t *testing.T, store authorization.Store, clock *Clock) {
	ctx := context.Background()
	live := NewRecord(clock, "client", "jane", time.Hour)
	require.NoError(t, store.Save(ctx, live))

	intruder := NewRecord(clock, "client", "jane", time.Hour)
	require.ErrorIs(t, store.Save(ctx, intruder), authorization.ErrConflict)

	current, err := store.FindByClientAndPrincipal(ctx, "client", "jane")
	require.NoError(t, err)
	require.Equal(t, live.ID, current.ID)

	missing, err := store.FindByTokenValue(ctx, intruder.RefreshToken.Value, token.Refresh)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func testReplaceStale(t *testing.T, store authorization.Store, clock *Clock) {
	ctx := context.Background()
	stale := NewRecord(clock, "client", "jane", time.Minute)
	require.NoError(t, store.Save(ctx, stale))

	clock.Advance(time.Minute)
	fresh := NewRecord(clock, "client", "jane", time.Hour)
	require.NoError(t, store.Save(ctx, fresh))

	current, err := store.FindByClientAndPrincipal(ctx, "client", "jane")
	require.NoError(t, err)
	require.Equal(t, fresh.ID, current.ID)

	for _, lookup := range []struct {
		value     string
		tokenType token.Type
	}{
		{stale.AccessToken.Value, token.Access},
		{stale.RefreshToken.Value, token.Refresh},
	} {
		r, err := store.FindByTokenValue(ctx, lookup.value, lookup.tokenType)
		require.NoError(t, err)
		require.Nil(t, r, "tokens of the replaced record no longer resolve")
	}

	// Writing the replaced record back must not displace the live one.
	require.ErrorIs(t, store.Save(ctx, stale), authorization.ErrConflict)
}

func testConcurrentInserts(t *testing.T, store authorization.Store, clock *Clock) {
	ctx := context.Background()
	const n = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		record := NewRecord(clock, "client", "racer", time.Hour)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := store.Save(ctx, record)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, authorization.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Equal(t, 1, successes)
	require.Equal(t, n-1, conflicts)
}

func testDetached(t *testing.T, store authorization.Store, clock *Clock) {
	ctx := context.Background()
	record := NewRecord(clock, "client", "jane", time.Hour)
	require.NoError(t, store.Save(ctx, record))

	record.AccessToken.Value = "mutated-after-save"
	found, err := store.FindByClientAndPrincipal(ctx, "client", "jane")
	require.NoError(t, err)
	require.NotEqual(t, "mutated-after-save", found.AccessToken.Value)

	found.Attributes["login_source"] = "mutated-after-find"
	again, err := store.FindByClientAndPrincipal(ctx, "client", "jane")
	require.NoError(t, err)
	require.Equal(t, "web", again.Attributes["login_source"])
}
