package authorization

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-token-authority/token"
)

// ErrConflict is returned by Save when a new record collides with a live record already stored
// for the same (client, principal) pair.
var ErrConflict = errors.New("authorization: live session already exists for client and principal")

// Store persists session authorizations. Lookups return (nil, nil) when nothing matches.
//
// Save upserts by ID and replaces the whole record atomically. A record with a new ID takes
// over the (client, principal) slot only if the record currently in it is not live; otherwise
// Save fails with ErrConflict. The replaced record's token values stop resolving.
type Store interface {
	FindByClientAndPrincipal(ctx context.Context, registeredClientID, principalName string) (*SessionAuthorization, error)
	FindByTokenValue(ctx context.Context, value string, tokenType token.Type) (*SessionAuthorization, error)
	Save(ctx context.Context, record *SessionAuthorization) error
}
