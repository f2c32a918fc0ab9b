package store

import (
	"sync"

	"truthguard/pkg/domain"
)

// MemoryStore keeps state in-process. Used by tests and ephemeral sessions.
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	user    *domain.User
	hasUser bool
	usage   int
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Token() (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != "", nil
}

func (m *MemoryStore) SaveUser(user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := user
	m.user = &u
	m.hasUser = true
	return nil
}

func (m *MemoryStore) User() (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasUser {
		return domain.User{}, false, nil
	}
	return *m.user, true, nil
}

func (m *MemoryStore) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = nil
	m.hasUser = false
	return nil
}

func (m *MemoryStore) UsageCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage, nil
}

func (m *MemoryStore) SaveUsageCount(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 {
		n = 0
	}
	m.usage = n
	return nil
}

func (m *MemoryStore) Close() error { return nil }
