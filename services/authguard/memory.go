package main

import (
	"context"
	"sync"

	"authguard/pkg/behavior"
)

// MemoryRepository is an in-memory Repository used when the service runs
// without a database (AUTHGUARD_DISABLE_DB=true) and by the handler tests.
type MemoryRepository struct {
	mu      sync.Mutex
	users   map[string]User
	history map[string][]behavior.HistoryRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[string]User),
		history: make(map[string][]behavior.HistoryRecord),
	}
}

func (m *MemoryRepository) LoadBaseline(_ context.Context, identity string) (*behavior.Baseline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[identity]
	if !ok {
		return nil, nil
	}
	b := u.Baseline
	return &b, nil
}

func (m *MemoryRepository) SaveBaseline(_ context.Context, identity string, b *behavior.Baseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[identity]
	if !ok {
		u = User{Username: identity, Role: "customer"}
	}
	u.Baseline = *b
	m.users[identity] = u
	return nil
}

func (m *MemoryRepository) AppendHistory(_ context.Context, identity string, rec behavior.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[identity] = append(m.history[identity], rec)
	return nil
}

func (m *MemoryRepository) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Username]; exists {
		return ErrUserExists
	}
	m.users[u.Username] = u
	return nil
}

func (m *MemoryRepository) GetUser(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryRepository) ListUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *MemoryRepository) ListHistory(_ context.Context, username string) ([]behavior.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.history[username]
	out := make([]behavior.HistoryRecord, len(records))
	copy(out, records)
	return out, nil
}

func (m *MemoryRepository) Close() error { return nil }
