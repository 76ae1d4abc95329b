package fakeclientrepo

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-authority/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clients map[string]*clients.Client // keyed by internal ID
	lock    sync.RWMutex
}

func NewFakeClientRepo(seed ...*clients.Client) *FakeClientRepo {
	r := &FakeClientRepo{
		clients: make(map[string]*clients.Client),
	}
	for _, c := range seed {
		_ = r.Upsert(context.Background(), c)
	}
	return r
}

func (r *FakeClientRepo) Upsert(_ context.Context, client *clients.Client) error {
	if client == nil || client.ClientID == "" {
		return errors.New("[FakeClientRepo.Upsert] clientId is required")
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	stored := *client
	r.clients[client.ID] = &stored
	return nil
}

func (r *FakeClientRepo) GetByID(_ context.Context, id string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[id]
	if !ok {
		return nil, nil
	}
	c := *client
	return &c, nil
}

func (r *FakeClientRepo) GetByClientID(_ context.Context, clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, client := range r.clients {
		if client.ClientID == clientID {
			c := *client
			return &c, nil
		}
	}
	return nil, nil
}

func (r *FakeClientRepo) List(_ context.Context, offset, limit int) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	all := make([]*clients.Client, 0, len(r.clients))
	for _, v := range r.clients {
		c := *v
		all = append(all, &c)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ClientID < all[j].ClientID
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}
