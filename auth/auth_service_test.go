package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-authority/auth"
	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/authorization/memstore"
	"github.com/jrsteele09/go-token-authority/clients"
	fakeclientrepo "github.com/jrsteele09/go-token-authority/clients/fakerepo"
	"github.com/jrsteele09/go-token-authority/identity"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/metrics"
	"github.com/jrsteele09/go-token-authority/token"
	"github.com/jrsteele09/go-token-authority/users"
	fakeuserrepo "github.com/jrsteele09/go-token-authority/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	secretStr          = "1234"
	issuer             = "com.testissuer"
	audience           = "api"
	testClientID       = "web-client"
	testInternalID     = "client-internal-1"
	testUserEmail      = "john.doe@example.com"
	accessTokenExpiry  = 15 * time.Minute
	refreshTokenExpiry = 24 * time.Hour
)

// testClock is a settable clock shared by the service, issuer and store.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testFixture holds all test dependencies
type testFixture struct {
	clock    *testClock
	userRepo *fakeuserrepo.FakeUserRepo
	clients  *fakeclientrepo.FakeClientRepo
	store    *memstore.Store
	tokens   *token.Manager
	registry *prometheus.Registry
	service  *auth.AuthorizationService
	john     identity.Principal
}

type fixtureOption func(*auth.Repos, *token.Issuer)

func withStore(store authorization.Store) fixtureOption {
	return func(r *auth.Repos, _ *token.Issuer) { r.Authorizations = store }
}

func withIssuer(i token.Issuer) fixtureOption {
	return func(_ *auth.Repos, issuer *token.Issuer) { *issuer = i }
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T, options ...fixtureOption) *testFixture {
	t.Helper()

	f := &testFixture{
		clock:    &testClock{now: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)},
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		registry: prometheus.NewRegistry(),
		john:     identity.Principal{Name: testUserEmail},
	}
	f.store = memstore.New(memstore.WithNowFunc(f.clock.Now))
	f.tokens = token.New(
		token.NewHMACSigner(secretStr),
		token.WithIssuer(issuer),
		token.WithAudience(audience),
		token.WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry),
		token.WithNowFunc(f.clock.Now),
	)

	require.NoError(t, f.userRepo.Upsert(context.Background(), &users.User{
		ID:        "user-1",
		Email:     testUserEmail,
		FirstName: "John",
		LastName:  "Doe",
		Verified:  true,
	}))

	f.clients = fakeclientrepo.NewFakeClientRepo(&clients.Client{
		ID:       testInternalID,
		ClientID: testClientID,
		Type:     clients.ClientTypePublic,
	})
	repos := auth.Repos{
		Users:          f.userRepo,
		Clients:        f.clients,
		Authorizations: f.store,
	}
	var issuerImpl token.Issuer = f.tokens
	for _, opt := range options {
		opt(&repos, &issuerImpl)
	}

	service, err := auth.NewAuthorizationService(repos, issuerImpl,
		auth.WithNowTime(f.clock.Now),
		auth.WithMetrics(metrics.New(f.registry)),
		auth.WithAccessTokenParser(f.tokens),
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *testFixture) counter(t *testing.T, name, outcome string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestNewAuthorizationService_RequiresDependencies(t *testing.T) {
	f := setupTestFixture(t)
	repos := auth.Repos{Users: f.userRepo, Clients: fakeclientrepo.NewFakeClientRepo(), Authorizations: f.store}

	_, err := auth.NewAuthorizationService(repos, nil)
	require.Error(t, err)

	missing := repos
	missing.Authorizations = nil
	_, err = auth.NewAuthorizationService(missing, f.tokens)
	require.Error(t, err)

	missing = repos
	missing.Clients = nil
	_, err = auth.NewAuthorizationService(missing, f.tokens)
	require.Error(t, err)
}

func TestLogin_ReusesLiveSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first, err := f.service.Login(ctx, testClientID, f.john, map[string]any{"login_source": "web"})
	require.NoError(t, err)
	require.NotEmpty(t, first.AccessToken)
	require.NotEmpty(t, first.RefreshToken)
	require.Equal(t, "bearer", first.TokenType)
	require.Equal(t, int(accessTokenExpiry.Seconds()), first.ExpiresIn)

	f.clock.Advance(5 * time.Minute)
	second, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)
	require.Equal(t, first.AccessToken, second.AccessToken)
	require.Equal(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, int((10 * time.Minute).Seconds()), second.ExpiresIn, "reports the time left on the reused token")

	record, err := f.store.FindByClientAndPrincipal(ctx, testInternalID, testUserEmail)
	require.NoError(t, err)
	require.Equal(t, first.AccessToken, record.AccessToken.Value)
	require.Equal(t, "web", record.Attributes["login_source"], "reuse does not rewrite the stored attributes")

	require.Equal(t, 1.0, f.counter(t, "token_authority_logins_total", metrics.OutcomeMinted))
	require.Equal(t, 1.0, f.counter(t, "token_authority_logins_total", metrics.OutcomeReused))
}

func TestLogin_RemintsAfterExpiry(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)
	stale, err := f.store.FindByClientAndPrincipal(ctx, testInternalID, testUserEmail)
	require.NoError(t, err)

	f.clock.Advance(accessTokenExpiry)
	second, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	current, err := f.store.FindByClientAndPrincipal(ctx, testInternalID, testUserEmail)
	require.NoError(t, err)
	require.NotEqual(t, stale.ID, current.ID)
	require.Equal(t, second.AccessToken, current.AccessToken.Value)

	old, err := f.store.FindByTokenValue(ctx, first.RefreshToken, token.Refresh)
	require.NoError(t, err)
	require.Nil(t, old, "the expired session was replaced, not duplicated")
}

func TestLogin_UnknownClient(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Login(context.Background(), "not-registered", f.john, nil)
	require.ErrorIs(t, err, autherrors.ErrUnknownClient)
	require.Equal(t, 1.0, f.counter(t, "token_authority_logins_total", metrics.OutcomeFailed))
}

func TestLogin_RequiresPrincipal(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Login(context.Background(), testClientID, identity.Principal{}, nil)
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
}

// emptyIssuer mints nothing, standing in for a broken token backend.
type emptyIssuer struct {
	refreshOnly bool
	inner       token.Issuer
}

func (e emptyIssuer) MintAccessToken(ctx context.Context, p identity.Principal, c *clients.Client) (*token.Token, error) {
	if e.refreshOnly {
		return e.inner.MintAccessToken(ctx, p, c)
	}
	return &token.Token{}, nil
}

func (e emptyIssuer) MintRefreshToken(context.Context, identity.Principal, *clients.Client) (*token.Token, error) {
	return nil, nil
}

func TestLogin_TokenGenerationFailure(t *testing.T) {
	for name, issuerImpl := range map[string]emptyIssuer{
		"EmptyAccessToken": {},
		"NoRefreshToken":   {refreshOnly: true, inner: token.New(token.NewHMACSigner(secretStr))},
	} {
		t.Run(name, func(t *testing.T) {
			f := setupTestFixture(t, withIssuer(issuerImpl))

			_, err := f.service.Login(context.Background(), testClientID, f.john, nil)
			require.ErrorIs(t, err, autherrors.ErrTokenGenerationFailure)

			record, err := f.store.FindByClientAndPrincipal(context.Background(), testInternalID, testUserEmail)
			require.NoError(t, err)
			require.Nil(t, record, "nothing is stored when minting fails")
		})
	}
}

func TestLogin_AttachesUserProfile(t *testing.T) {
	f := setupTestFixture(t)

	response, err := f.service.Login(context.Background(), testClientID, f.john, nil)
	require.NoError(t, err)
	require.NotNil(t, response.User)
	require.Equal(t, "user-1", response.User.ID)
	require.Equal(t, "John", response.User.FirstName)

	stranger, err := f.service.Login(context.Background(), testClientID, identity.Principal{Name: "upstream@idp.example.com"}, nil)
	require.NoError(t, err)
	require.Nil(t, stranger.User)
}

func TestLogin_ConcurrentLoginsShareOneSession(t *testing.T) {
	f := setupTestFixture(t)
	const n = 20

	var wg sync.WaitGroup
	responses := make([]string, n)
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			response, err := f.service.Login(context.Background(), testClientID, f.john, nil)
			errs[i] = err
			if err == nil {
				responses[i] = response.AccessToken
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, responses[0], responses[i], "every caller ends up with the winning session")
	}

	record, err := f.store.FindByClientAndPrincipal(context.Background(), testInternalID, testUserEmail)
	require.NoError(t, err)
	require.Equal(t, responses[0], record.AccessToken.Value)
	require.Equal(t, 1.0, f.counter(t, "token_authority_logins_total", metrics.OutcomeMinted))
}

func TestRefresh_RejectsUnknownToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Refresh(context.Background(), "never-issued")
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)

	_, err = f.service.Refresh(context.Background(), "   ")
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
	require.Equal(t, 2.0, f.counter(t, "token_authority_refreshes_total", metrics.OutcomeFailed))
}

func TestRefresh_RejectsAccessTokenValue(t *testing.T) {
	f := setupTestFixture(t)

	login, err := f.service.Login(context.Background(), testClientID, f.john, nil)
	require.NoError(t, err)

	_, err = f.service.Refresh(context.Background(), login.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

func TestRefresh_RotatesAccessTokenOnly(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	login, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)
	before, err := f.store.FindByTokenValue(ctx, login.RefreshToken, token.Refresh)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	refreshed, err := f.service.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.AccessToken, refreshed.AccessToken)
	require.Equal(t, login.RefreshToken, refreshed.RefreshToken)
	require.Equal(t, int(accessTokenExpiry.Seconds()), refreshed.ExpiresIn)
	require.NotNil(t, refreshed.User)

	after, err := f.store.FindByTokenValue(ctx, login.RefreshToken, token.Refresh)
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.Equal(t, refreshed.AccessToken, after.AccessToken.Value)
	require.True(t, after.AccessToken.ExpiresAt.After(before.AccessToken.ExpiresAt))
	require.Equal(t, before.RefreshToken.ExpiresAt, after.RefreshToken.ExpiresAt)
	require.Equal(t, before.CreatedAt, after.CreatedAt)
	require.True(t, after.UpdatedAt.After(before.UpdatedAt))

	old, err := f.store.FindByTokenValue(ctx, login.AccessToken, token.Access)
	require.NoError(t, err)
	require.Nil(t, old, "the previous access token no longer resolves")

	claims, err := f.tokens.ParseAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserEmail, claims["sub"])
	require.Equal(t, testClientID, claims["client_id"])
}

func TestRefresh_AfterAccessExpiry(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	login, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)

	f.clock.Advance(accessTokenExpiry + time.Minute)
	refreshed, err := f.service.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, login.RefreshToken, refreshed.RefreshToken)

	again, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)
	require.Equal(t, refreshed.AccessToken, again.AccessToken, "a refreshed session is live again and reused")
}

func TestRefresh_RejectsExpiredRefreshToken(t *testing.T) {
	f := setupTestFixture(t)

	login, err := f.service.Login(context.Background(), testClientID, f.john, nil)
	require.NoError(t, err)

	f.clock.Advance(refreshTokenExpiry)
	_, err = f.service.Refresh(context.Background(), login.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

func TestRefresh_RejectsTokenOfReplacedSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)

	f.clock.Advance(accessTokenExpiry)
	_, err = f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

func TestRefresh_UnknownClient(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	now := f.clock.Now()
	require.NoError(t, f.store.Save(ctx, &authorization.SessionAuthorization{
		ID:                 "orphan",
		RegisteredClientID: "deleted-client",
		PrincipalName:      testUserEmail,
		AccessToken:        &token.Token{Value: "orphan-access", IssuedAt: now, ExpiresAt: now.Add(time.Minute)},
		RefreshToken:       &token.Token{Value: "orphan-refresh", IssuedAt: now, ExpiresAt: now.Add(time.Hour)},
	}))

	_, err := f.service.Refresh(ctx, "orphan-refresh")
	require.ErrorIs(t, err, autherrors.ErrUnknownClient)

	// The client is resolved before the refresh token's expiry is judged.
	f.clock.Advance(2 * time.Hour)
	_, err = f.service.Refresh(ctx, "orphan-refresh")
	require.ErrorIs(t, err, autherrors.ErrUnknownClient)
	require.NotErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

// conflictingStore behaves like its inner store but reports every overwrite as lost to a
// concurrent login.
type conflictingStore struct {
	authorization.Store
	failSaves bool
}

func (c *conflictingStore) Save(ctx context.Context, record *authorization.SessionAuthorization) error {
	if c.failSaves {
		return authorization.ErrConflict
	}
	return c.Store.Save(ctx, record)
}

func TestRefresh_SessionReplacedDuringRefresh(t *testing.T) {
	store := &conflictingStore{Store: memstore.New()}
	f := setupTestFixture(t, withStore(store))

	login, err := f.service.Login(context.Background(), testClientID, f.john, nil)
	require.NoError(t, err)

	store.failSaves = true
	_, err = f.service.Refresh(context.Background(), login.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

func TestLogin_GivesUpAfterRepeatedConflicts(t *testing.T) {
	store := &conflictingStore{Store: memstore.New(), failSaves: true}
	f := setupTestFixture(t, withStore(store))

	_, err := f.service.Login(context.Background(), testClientID, f.john, nil)
	require.ErrorIs(t, err, authorization.ErrConflict)
}

func TestMetricsRegistered(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.Login(context.Background(), testClientID, f.john, nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(f.registry, "token_authority_logins_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestUserInfo_ReleasesScopedProfile(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.clients.Upsert(ctx, &clients.Client{
		ID:       "scoped-internal",
		ClientID: "scoped-client",
		Type:     clients.ClientTypePublic,
		Scopes:   []string{"openid", clients.ScopeProfile, clients.ScopeEmail},
	}))

	login, err := f.service.Login(ctx, "scoped-client", f.john, nil)
	require.NoError(t, err)

	profile, err := f.service.UserInfo(ctx, login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", profile.ID)
	require.Equal(t, testUserEmail, profile.Email)
	require.True(t, profile.Verified)
	require.Equal(t, "John", profile.FirstName)
	require.Equal(t, "Doe", profile.LastName)
}

func TestUserInfo_WithholdsUnscopedFields(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	login, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)

	profile, err := f.service.UserInfo(ctx, login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", profile.ID)
	require.Empty(t, profile.Email)
	require.False(t, profile.Verified)
	require.Empty(t, profile.FirstName)
	require.Empty(t, profile.LastName)
}

func TestUserInfo_RejectsStaleAndForeignTokens(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	login, err := f.service.Login(ctx, testClientID, f.john, nil)
	require.NoError(t, err)

	_, err = f.service.UserInfo(ctx, "")
	require.ErrorIs(t, err, autherrors.ErrInvalidAccessToken)
	_, err = f.service.UserInfo(ctx, "not-a-jwt")
	require.ErrorIs(t, err, autherrors.ErrInvalidAccessToken)

	foreign := token.New(token.NewHMACSigner("another-secret"), token.WithNowFunc(f.clock.Now))
	forged, err := foreign.MintAccessToken(ctx, f.john, &clients.Client{ID: testInternalID, ClientID: testClientID})
	require.NoError(t, err)
	_, err = f.service.UserInfo(ctx, forged.Value)
	require.ErrorIs(t, err, autherrors.ErrInvalidAccessToken)

	// A correctly signed token that no session holds.
	unheld, err := f.tokens.MintAccessToken(ctx, f.john, &clients.Client{ID: testInternalID, ClientID: testClientID})
	require.NoError(t, err)
	_, err = f.service.UserInfo(ctx, unheld.Value)
	require.ErrorIs(t, err, autherrors.ErrInvalidAccessToken)

	f.clock.Advance(time.Minute)
	refreshed, err := f.service.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	_, err = f.service.UserInfo(ctx, login.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidAccessToken, "a refreshed-away token is no longer accepted")
	_, err = f.service.UserInfo(ctx, refreshed.AccessToken)
	require.NoError(t, err)

	f.clock.Advance(accessTokenExpiry)
	_, err = f.service.UserInfo(ctx, refreshed.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidAccessToken)
}
