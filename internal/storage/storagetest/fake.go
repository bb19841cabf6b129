// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gestentre/internal/models"
	"gestentre/internal/storage"

	"github.com/gofrs/uuid"
)

// Fake mirrors the Postgres storage's query semantics over a map. Set Err to
// make every call fail, or LastLoginErr to fail only UpdateLastLogin.
type Fake struct {
	mu     sync.Mutex
	users  map[uuid.UUID]models.User
	hashes map[uuid.UUID]string
	calls  int

	Err          error
	LastLoginErr error
}

func NewFake() *Fake {
	return &Fake{
		users:  make(map[uuid.UUID]models.User),
		hashes: make(map[uuid.UUID]string),
	}
}

var _ storage.Storage = (*Fake)(nil)

// AddUser stores user with the given hash, assigning an id when it has none.
func (f *Fake) AddUser(user models.User, passwordHash string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.Must(uuid.NewV4())
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	f.users[user.ID] = user
	f.hashes[user.ID] = passwordHash

	return user
}

func (f *Fake) SetActive(id uuid.UUID, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.users[id]
	u.Active = active
	f.users[id] = u
}

func (f *Fake) User(id uuid.UUID) (models.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	return u, ok
}

// Calls is the number of storage operations issued so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func (f *Fake) begin() error {
	f.calls++
	return f.Err
}

func (f *Fake) GetCredentialsByEmail(ctx context.Context, email string) (models.Credentials, error) {
	const op = "storagetest.GetCredentialsByEmail"

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.begin(); err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}
	for id, u := range f.users {
		if u.Email == email && u.Active {
			return models.Credentials{User: u, PasswordHash: f.hashes[id]}, nil
		}
	}
	return models.Credentials{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
}

func (f *Fake) GetActiveUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storagetest.GetActiveUserByID"

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.begin(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	u, ok := f.users[userID]
	if !ok || !u.Active {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return u, nil
}

func (f *Fake) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	const op = "storagetest.UpdateLastLogin"

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.begin(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if f.LastLoginErr != nil {
		return fmt.Errorf("%s: %w", op, f.LastLoginErr)
	}
	if u, ok := f.users[userID]; ok {
		now := time.Now()
		u.LastLogin = &now
		f.users[userID] = u
	}
	return nil
}

func (f *Fake) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storagetest.GetUserByEmail"

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.begin(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
}

func (f *Fake) CreateUser(ctx context.Context, user models.User, passwordHash string) (uuid.UUID, error) {
	const op = "storagetest.CreateUser"

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.begin(); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return uuid.Nil, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
	}

	user.ID = uuid.Must(uuid.NewV4())
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	f.hashes[user.ID] = passwordHash

	return user.ID, nil
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.begin()
}

func (f *Fake) Close() {}
