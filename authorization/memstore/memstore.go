// Package memstore is an in-process authorization.Store.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-authority/authorization"
	"github.com/jrsteele09/go-token-authority/token"
)

var _ authorization.Store = (*Store)(nil)

type sessionKey struct {
	clientID      string
	principalName string
}

type Store struct {
	lock    sync.RWMutex
	byID    map[string]*authorization.SessionAuthorization
	byKey   map[sessionKey]string             // session key to record id
	byToken map[token.Type]map[string]string // token value to record id
	nowFunc func() time.Time
}

type Option func(*Store)

// WithNowFunc sets the clock used to decide whether a stored record is still live.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func New(options ...Option) *Store {
	s := &Store{
		byID:  make(map[string]*authorization.SessionAuthorization),
		byKey: make(map[sessionKey]string),
		byToken: map[token.Type]map[string]string{
			token.Access:  make(map[string]string),
			token.Refresh: make(map[string]string),
		},
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) FindByClientAndPrincipal(_ context.Context, registeredClientID, principalName string) (*authorization.SessionAuthorization, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	id, ok := s.byKey[sessionKey{registeredClientID, principalName}]
	if !ok {
		return nil, nil
	}
	return s.byID[id].Clone(), nil
}

func (s *Store) FindByTokenValue(_ context.Context, value string, tokenType token.Type) (*authorization.SessionAuthorization, error) {
	if value == "" {
		return nil, nil
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	id, ok := s.byToken[tokenType][value]
	if !ok {
		return nil, nil
	}
	return s.byID[id].Clone(), nil
}

func (s *Store) Save(_ context.Context, record *authorization.SessionAuthorization) error {
	if record == nil || record.ID == "" {
		return errors.New("[memstore.Save] record id is required")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	key := sessionKey{record.RegisteredClientID, record.PrincipalName}
	if existingID, ok := s.byKey[key]; ok && existingID != record.ID {
		existing := s.byID[existingID]
		if existing.IsLive(s.nowFunc()) {
			return authorization.ErrConflict
		}
		s.remove(existing)
	}

	if previous, ok := s.byID[record.ID]; ok {
		s.remove(previous)
	}

	stored := record.Clone()
	s.byID[stored.ID] = stored
	s.byKey[key] = stored.ID
	for _, tokenType := range []token.Type{token.Access, token.Refresh} {
		if v := stored.TokenValue(tokenType); v != "" {
			s.byToken[tokenType][v] = stored.ID
		}
	}
	return nil
}

func (s *Store) remove(record *authorization.SessionAuthorization) {
	delete(s.byID, record.ID)
	key := sessionKey{record.RegisteredClientID, record.PrincipalName}
	if s.byKey[key] == record.ID {
		delete(s.byKey, key)
	}
	for _, tokenType := range []token.Type{token.Access, token.Refresh} {
		if v := record.TokenValue(tokenType); v != "" && s.byToken[tokenType][v] == record.ID {
			delete(s.byToken[tokenType], v)
		}
	}
}
