package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-authority/account"
	"github.com/jrsteele09/go-token-authority/actiontoken"
	actiontokenmemstore "github.com/jrsteele09/go-token-authority/actiontoken/memstore"
	"github.com/jrsteele09/go-token-authority/identity"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/users"
	fakeuserrepo "github.com/jrsteele09/go-token-authority/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "Jane.Doe@Example.com"
	testPassword = "Sup3rSecret"
	newPassword  = "An0therSecret"
)

// recordingSender keeps the last token value sent for each kind of link.
type recordingSender struct {
	mu         sync.Mutex
	activation []string
	reset      []string
	err        error
}

func (s *recordingSender) SendActivationLink(_ context.Context, _ *users.User, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activation = append(s.activation, tokenValue)
	return s.err
}

func (s *recordingSender) SendResetLink(_ context.Context, _ *users.User, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset = append(s.reset, tokenValue)
	return s.err
}

func (s *recordingSender) lastActivation(t *testing.T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.activation)
	return s.activation[len(s.activation)-1]
}

func (s *recordingSender) lastReset(t *testing.T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.reset)
	return s.reset[len(s.reset)-1]
}

type testFixture struct {
	now      time.Time
	userRepo *fakeuserrepo.FakeUserRepo
	sender   *recordingSender
	service  *account.Service
}

func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:      time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		sender:   &recordingSender{},
	}
	nowFunc := func() time.Time { return f.now }

	tracker, err := actiontoken.NewTracker(actiontokenmemstore.New(),
		actiontoken.WithTTL(actiontoken.PurposeActivation, 24*time.Hour),
		actiontoken.WithTTL(actiontoken.PurposePasswordReset, time.Hour),
		actiontoken.WithNowFunc(nowFunc),
	)
	require.NoError(t, err)

	f.service, err = account.NewService(f.userRepo, tracker, f.sender, account.WithNowTime(nowFunc))
	require.NoError(t, err)
	return f
}

func (f *testFixture) signup(t *testing.T) *users.User {
	t.Helper()
	user, err := f.service.Signup(context.Background(), account.SignupRequest{
		Email:     testEmail,
		Password:  testPassword,
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)
	return user
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	tracker, err := actiontoken.NewTracker(actiontokenmemstore.New())
	require.NoError(t, err)

	_, err = account.NewService(nil, tracker, &recordingSender{})
	require.Error(t, err)
	_, err = account.NewService(fakeuserrepo.NewFakeUserRepo(), nil, &recordingSender{})
	require.Error(t, err)
	_, err = account.NewService(fakeuserrepo.NewFakeUserRepo(), tracker, nil)
	require.Error(t, err)
}

func TestSignupThenActivate(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	user := f.signup(t)
	require.Equal(t, "jane.doe@example.com", user.Email)
	require.Equal(t, user.Email, user.Username)
	require.False(t, user.Verified)
	require.Equal(t, f.now, user.DateJoined)

	verifier := users.NewPasswordVerifier(f.userRepo)
	_, err := verifier.Authenticate(ctx, identity.Credentials{Username: testEmail, Password: testPassword})
	require.ErrorIs(t, err, autherrors.ErrUserNotVerified)

	link := f.sender.lastActivation(t)
	require.NoError(t, f.service.Activate(ctx, link))

	principal, err := verifier.Authenticate(ctx, identity.Credentials{Username: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.com", principal.Name)

	require.ErrorIs(t, f.service.Activate(ctx, link), autherrors.ErrTokenAlreadyConsumed)
}

func TestSignupRejectsBadInput(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Signup(ctx, account.SignupRequest{Email: "not-an-email", Password: testPassword})
	require.ErrorIs(t, err, autherrors.ErrInvalidRequest)

	_, err = f.service.Signup(ctx, account.SignupRequest{Email: testEmail, Password: "weak"})
	require.ErrorIs(t, err, autherrors.ErrPasswordPolicy)

	f.signup(t)
	_, err = f.service.Signup(ctx, account.SignupRequest{Email: "jane.doe@example.com", Password: testPassword})
	require.ErrorIs(t, err, autherrors.ErrUserExists)
}

func TestConcurrentSignupsForOneEmail(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []*users.User
		exists  int
		others  []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			user, err := f.service.Signup(ctx, account.SignupRequest{Email: testEmail, Password: testPassword})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created = append(created, user)
			case errors.Is(err, autherrors.ErrUserExists):
				exists++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, created, 1)
	require.Equal(t, n-1, exists)

	stored, err := f.userRepo.GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	require.Equal(t, created[0].ID, stored.ID)
	require.Len(t, f.sender.activation, 1, "only the stored user is sent a link")
}

func TestSignupSurvivesNotifierFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.sender.err = errors.New("smtp down")

	user := f.signup(t)
	stored, err := f.userRepo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, f.sender.activation, 1)
}

func TestActivationLinkExpires(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)

	f.advance(24*time.Hour + time.Second)
	require.ErrorIs(t, f.service.Activate(context.Background(), f.sender.lastActivation(t)), autherrors.ErrTokenExpired)
}

func TestResendActivation(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.ResendActivation(ctx, "nobody@example.com"))
	require.Empty(t, f.sender.activation)

	f.signup(t)
	first := f.sender.lastActivation(t)
	require.NoError(t, f.service.ResendActivation(ctx, testEmail))
	second := f.sender.lastActivation(t)
	require.NotEqual(t, first, second)

	// Either outstanding link activates the account.
	require.NoError(t, f.service.Activate(ctx, first))

	require.NoError(t, f.service.ResendActivation(ctx, testEmail))
	require.Len(t, f.sender.activation, 2, "verified users are not sent another link")
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.service.ForgotPassword(context.Background(), "ghost@example.com"))
	require.Empty(t, f.sender.reset)
}

func TestResetPassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	user := f.signup(t)
	require.NoError(t, f.service.Activate(ctx, f.sender.lastActivation(t)))

	require.NoError(t, f.service.ForgotPassword(ctx, testEmail))
	link := f.sender.lastReset(t)

	require.ErrorIs(t, f.service.ResetPassword(ctx, link, "short"), autherrors.ErrPasswordPolicy)
	require.NoError(t, f.service.ResetPassword(ctx, link, newPassword), "a rejected password does not burn the link")

	stored, err := f.userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash(newPassword, stored.PasswordHash))
	require.False(t, users.CheckPasswordHash(testPassword, stored.PasswordHash))

	require.ErrorIs(t, f.service.ResetPassword(ctx, link, newPassword), autherrors.ErrTokenAlreadyConsumed)
}

func TestResetPasswordRejectsOtherPurposes(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t)

	activation := f.sender.lastActivation(t)
	require.ErrorIs(t, f.service.ResetPassword(ctx, activation, newPassword), autherrors.ErrTokenNotFound)

	// The activation link was not consumed by the failed reset.
	require.NoError(t, f.service.Activate(ctx, activation))

	require.NoError(t, f.service.ForgotPassword(ctx, testEmail))
	require.ErrorIs(t, f.service.Activate(ctx, f.sender.lastReset(t)), autherrors.ErrTokenNotFound)
}

func TestResetLinkExpiresAfterAnHour(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t)

	require.NoError(t, f.service.ForgotPassword(ctx, testEmail))
	f.advance(time.Hour + time.Minute)
	require.ErrorIs(t, f.service.ResetPassword(ctx, f.sender.lastReset(t), newPassword), autherrors.ErrTokenExpired)
}
