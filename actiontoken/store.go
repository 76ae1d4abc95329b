package actiontoken

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateToken is returned by Create when the token value is already stored.
var ErrDuplicateToken = errors.New("actiontoken: token value already exists")

// Store persists action tokens. GetByValue returns (nil, nil) when the value is unknown.
type Store interface {
	Create(ctx context.Context, token *ActionToken) error
	GetByValue(ctx context.Context, value string) (*ActionToken, error)

	// MarkActivated moves the token from REQUESTED to ACTIVATED as one atomic step and reports
	// whether it did. Any other current state, or an unknown value, leaves the store untouched
	// and returns false.
	MarkActivated(ctx context.Context, value string, at time.Time) (bool, error)
}
