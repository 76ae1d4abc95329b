// Package memstore is an in-process actiontoken.Store.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-authority/actiontoken"
)

var _ actiontoken.Store = (*Store)(nil)

type Store struct {
	lock   sync.RWMutex
	tokens map[string]*actiontoken.ActionToken // keyed by token value
}

func New() *Store {
	return &Store{
		tokens: make(map[string]*actiontoken.ActionToken),
	}
}

func (s *Store) Create(_ context.Context, token *actiontoken.ActionToken) error {
	if token == nil || token.TokenValue == "" {
		return errors.New("[memstore.Create] token value is required")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, exists := s.tokens[token.TokenValue]; exists {
		return actiontoken.ErrDuplicateToken
	}
	s.tokens[token.TokenValue] = token.Clone()
	return nil
}

func (s *Store) GetByValue(_ context.Context, value string) (*actiontoken.ActionToken, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.tokens[value].Clone(), nil
}

func (s *Store) MarkActivated(_ context.Context, value string, at time.Time) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	token, ok := s.tokens[value]
	if !ok || token.Status != actiontoken.StatusRequested {
		return false, nil
	}
	token.Status = actiontoken.StatusActivated
	token.ActivatedAt = &at
	token.Touch(at)
	return true, nil
}
