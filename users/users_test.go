package users_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-token-authority/identity"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/users"
	fakeuserrepo "github.com/jrsteele09/go-token-authority/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Password1"))

	for _, weak := range []string{"Pa1", "password1", "PASSWORD1", "Password"} {
		err := users.ValidatePasswordStrength(weak)
		require.ErrorIs(t, err, autherrors.ErrPasswordPolicy, weak)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := users.HashPassword("Password1")
	require.NoError(t, err)
	require.NotEqual(t, "Password1", hash)
	require.True(t, users.CheckPasswordHash("Password1", hash))
	require.False(t, users.CheckPasswordHash("Password2", hash))
}

type testFixture struct {
	repo     *fakeuserrepo.FakeUserRepo
	verifier *users.PasswordVerifier
}

func setupTestFixture(t *testing.T) *testFixture {
	repo := fakeuserrepo.NewFakeUserRepo()
	hash, err := users.HashPassword("Password1")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &users.User{ID: "u1", Email: "Jane@Example.com", FirstName: "Jane", LastName: "Doe", PasswordHash: hash, Verified: true}))
	require.NoError(t, repo.Upsert(ctx, &users.User{ID: "u2", Email: "new@example.com", PasswordHash: hash}))
	require.NoError(t, repo.Upsert(ctx, &users.User{ID: "u3", Email: "blocked@example.com", PasswordHash: hash, Verified: true, Blocked: true}))

	return &testFixture{repo: repo, verifier: users.NewPasswordVerifier(repo)}
}

func TestPasswordVerifier(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	principal, err := f.verifier.Authenticate(ctx, identity.Credentials{Username: " JANE@example.com ", Password: "Password1"})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", principal.Name)
	require.Equal(t, "u1", principal.Subject)
	require.Equal(t, "Jane Doe", principal.DisplayName)

	_, err = f.verifier.Authenticate(ctx, identity.Credentials{Username: "jane@example.com", Password: "wrong"})
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)

	_, err = f.verifier.Authenticate(ctx, identity.Credentials{Username: "nobody@example.com", Password: "Password1"})
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)

	_, err = f.verifier.Authenticate(ctx, identity.Credentials{Username: "new@example.com", Password: "Password1"})
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	require.ErrorIs(t, err, autherrors.ErrUserNotVerified)

	_, err = f.verifier.Authenticate(ctx, identity.Credentials{Username: "blocked@example.com", Password: "Password1"})
	require.ErrorIs(t, err, autherrors.ErrUserBlocked)
}

func TestFakeUserRepoMutations(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SetVerified(ctx, "u2", true))
	require.NoError(t, f.repo.SetPasswordHash(ctx, "u2", "new-hash"))

	u, err := f.repo.GetByID(ctx, "u2")
	require.NoError(t, err)
	require.True(t, u.Verified)
	require.Equal(t, "new-hash", u.PasswordHash)

	require.ErrorIs(t, f.repo.SetVerified(ctx, "missing", true), users.ErrUserNotFound)

	missing, err := f.repo.GetByEmail(ctx, "missing@example.com")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestFakeUserRepoRejectsTakenEmail(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	err := f.repo.Upsert(ctx, &users.User{ID: "u4", Email: " JANE@example.com"})
	require.ErrorIs(t, err, autherrors.ErrUserExists)

	owner, err := f.repo.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", owner.ID)
	missing, err := f.repo.GetByID(ctx, "u4")
	require.NoError(t, err)
	require.Nil(t, missing)

	// The owner may rewrite its own record, including moving to a free email.
	require.NoError(t, f.repo.Upsert(ctx, &users.User{ID: "u1", Email: "jane.new@example.com"}))
	moved, err := f.repo.GetByEmail(ctx, "jane.new@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", moved.ID)
	released, err := f.repo.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Nil(t, released)
}
