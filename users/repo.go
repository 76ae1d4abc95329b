package users

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned by mutations addressed at a user that does not exist.
var ErrUserNotFound = errors.New("user not found")

// UserRepo stores users. Lookups return (nil, nil) when no user matches; emails are matched
// after NormalizeEmail. Upsert fails with ErrUserExists when the email belongs to another user.
type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	SetVerified(ctx context.Context, id string, verified bool) error
	SetPasswordHash(ctx context.Context, id string, passwordHash string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}
