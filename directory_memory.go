package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory is an in process UserDirectory. A single mutex makes
// UpdateIf atomic, matching the conditional UPDATE of the SQL directory.
type MemoryDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
	now   func() time.Time
}

var _ UserDirectory = (*MemoryDirectory)(nil)

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users: make(map[uuid.UUID]*User),
		now:   time.Now,
	}
}

func (m *MemoryDirectory) FindByID(_ context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.Clone(), nil
}

func (m *MemoryDirectory) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryDirectory) FindByFederatedID(_ context.Context, federatedID string) (UserLookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.GoogleID != nil && *u.GoogleID == federatedID {
			return Found(u.Clone()), nil
		}
	}
	return NotFound(), nil
}

func (m *MemoryDirectory) Create(_ context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := user.Clone()
	prepareUserDefaults(record)

	if _, ok := m.users[record.ID]; ok {
		return nil, ErrEmailTaken
	}
	for _, u := range m.users {
		if u.Email == record.Email {
			return nil, ErrEmailTaken
		}
		if record.GoogleID != nil && u.GoogleID != nil && *u.GoogleID == *record.GoogleID {
			return nil, ErrEmailTaken
		}
	}

	now := m.now()
	record.CreatedAt = now
	record.UpdatedAt = now
	m.users[record.ID] = record

	return record.Clone(), nil
}

func (m *MemoryDirectory) Update(_ context.Context, id uuid.UUID, patch UserPatch) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	patch.Apply(u)
	u.UpdatedAt = m.now()
	return u.Clone(), nil
}

func (m *MemoryDirectory) UpdateIf(_ context.Context, id uuid.UUID, cond UserCondition, patch UserPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || !cond.Matches(u) {
		return false, nil
	}
	patch.Apply(u)
	u.UpdatedAt = m.now()
	return true, nil
}
