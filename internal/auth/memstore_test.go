package auth

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lifei6671/userauth/internal/database"
)

// memStore is an in-memory Store for tests. down simulates an unreachable database.
type memStore struct {
	mu      sync.Mutex
	users   map[primitive.ObjectID]User
	revoked map[string]time.Time
	down    bool
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[primitive.ObjectID]User),
		revoked: make(map[string]time.Time),
	}
}

func (m *memStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return database.ErrNotReady
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return User{}, database.ErrNotReady
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memStore) UserByID(_ context.Context, id primitive.ObjectID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return User{}, database.ErrNotReady
	}
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return database.ErrNotReady
	}
	if _, ok := m.revoked[tokenID]; ok {
		return ErrTokenRevoked
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *memStore) setDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}
