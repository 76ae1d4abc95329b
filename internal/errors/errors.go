package errors

import (
	"errors"
	"fmt"
)

// Failures surfaced by the token authority. Callers match them with Is.
var (
	// Login errors
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUnknownClient          = errors.New("unknown client")
	ErrTokenGenerationFailure = errors.New("token generation failure")

	// Refresh errors
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Bearer errors
	ErrInvalidAccessToken = errors.New("invalid access token")

	// Action token errors
	ErrTokenNotFound        = errors.New("token not found")
	ErrTokenAlreadyConsumed = errors.New("token already consumed")
	ErrTokenExpired         = errors.New("token expired")

	// Account errors
	ErrPasswordPolicy  = errors.New("password does not meet policy")
	ErrUserExists      = errors.New("user already exists")
	ErrUserBlocked     = errors.New("user is blocked")
	ErrUserNotVerified = errors.New("user is not verified")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
