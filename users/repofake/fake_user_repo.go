package fakeuserrepo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	if user == nil || user.Email == "" {
		return errors.New("[FakeUserRepo.Upsert] email is required")
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = users.NormalizeEmail(user.Email)
	if owner, taken := ur.emailIds[user.Email]; taken && owner != user.ID {
		return autherrors.ErrUserExists
	}
	if previous, ok := ur.users[user.ID]; ok && previous.Email != user.Email {
		delete(ur.emailIds, previous.Email)
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	u := *ur.users[id]
	return &u, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, nil
	}
	u := *user
	return &u, nil
}

func (ur *FakeUserRepo) SetVerified(_ context.Context, id string, verified bool) error {
	return ur.update(id, func(u *users.User) { u.Verified = verified })
}

func (ur *FakeUserRepo) SetPasswordHash(_ context.Context, id string, passwordHash string) error {
	return ur.update(id, func(u *users.User) { u.PasswordHash = passwordHash })
}

func (ur *FakeUserRepo) SetLastLogin(_ context.Context, id string, at time.Time) error {
	return ur.update(id, func(u *users.User) { u.LastLogin = at })
}

func (ur *FakeUserRepo) update(id string, apply func(*users.User)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	apply(user)
	return nil
}
