package identity

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu        sync.RWMutex
	users     map[string]User   // hashed primary phone -> user
	uidIndex  map[string]string // uid -> hashed primary phone
	secondary map[string]string // hashed secondary phone -> hashed primary phone

	failUIDIndex bool // test hook: make the uid index write fail after the user write
}

// NewMemoryRepository builds an in-memory identity store for development and
// testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		users:     make(map[string]User),
		uidIndex:  make(map[string]string),
		secondary: make(map[string]string),
	}
}

func (r *memoryRepository) FindByPrimaryPhone(_ context.Context, hashedPhone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[hashedPhone]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByUID(_ context.Context, uid string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	phone, ok := r.uidIndex[uid]
	if !ok {
		return User{}, ErrNotFound
	}
	user, ok := r.users[phone]
	if !ok {
		return User{}, errors.New("uid index points at missing user")
	}
	return user, nil
}

func (r *memoryRepository) FindPrimaryForSecondary(_ context.Context, hashedPhone string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	primary, ok := r.secondary[hashedPhone]
	if !ok {
		return "", ErrNotFound
	}
	return primary, nil
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Phone]; exists {
		return errors.New("user exists")
	}
	r.users[user.Phone] = user
	if r.failUIDIndex {
		return errors.New("uid index write failed")
	}
	r.uidIndex[user.UID] = user.Phone
	return nil
}

func (r *memoryRepository) LinkSecondary(_ context.Context, hashedSecondary, hashedPrimary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[hashedPrimary]
	if !ok {
		return ErrNotFound
	}
	r.secondary[hashedSecondary] = hashedPrimary
	if user.Secondary == nil {
		user.Secondary = map[string]string{}
	}
	user.Secondary[hashedSecondary] = user.UID
	r.users[hashedPrimary] = user
	return nil
}

// linkDangling wires a secondary phone at a primary that has no user record.
// Test helper for exercising integrity faults.
func linkDangling(repo Repository, hashedSecondary, hashedPrimary string) {
	if m, ok := repo.(*memoryRepository); ok {
		m.mu.Lock()
		m.secondary[hashedSecondary] = hashedPrimary
		m.mu.Unlock()
	}
}
