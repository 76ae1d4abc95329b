package users

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-token-authority/identity"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/pkg/errors"
)

// PasswordVerifier authenticates an email and password against the user repo.
type PasswordVerifier struct {
	repo UserRepo
}

var _ identity.Verifier = (*PasswordVerifier)(nil)

func NewPasswordVerifier(repo UserRepo) *PasswordVerifier {
	return &PasswordVerifier{repo: repo}
}

func (v *PasswordVerifier) Authenticate(ctx context.Context, credentials identity.Credentials) (identity.Principal, error) {
	email := NormalizeEmail(credentials.Username)
	if email == "" || credentials.Password == "" {
		return identity.Principal{}, fmt.Errorf("%w: email and password are required", autherrors.ErrInvalidCredentials)
	}

	user, err := v.repo.GetByEmail(ctx, email)
	if err != nil {
		return identity.Principal{}, errors.Wrap(err, "[PasswordVerifier.Authenticate] GetByEmail")
	}
	// Unknown users and bad passwords are indistinguishable to the caller.
	if user == nil || !CheckPasswordHash(credentials.Password, user.PasswordHash) {
		return identity.Principal{}, autherrors.ErrInvalidCredentials
	}
	if user.Blocked {
		return identity.Principal{}, fmt.Errorf("%w: %w", autherrors.ErrInvalidCredentials, autherrors.ErrUserBlocked)
	}
	if !user.Verified {
		return identity.Principal{}, fmt.Errorf("%w: %w", autherrors.ErrInvalidCredentials, autherrors.ErrUserNotVerified)
	}

	return identity.Principal{
		Name:        user.Email,
		Subject:     user.ID,
		DisplayName: user.FullName(),
	}, nil
}
