package session

import (
	"context"
	"sync"

	"github.com/wricardo/memory-tiles/game/engine"
)

// MemoryStore keeps sessions in process memory. Useful for tests and for
// running without any backing service.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]engine.Session
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]engine.Session)}
}

// Save implements Store
func (m *MemoryStore) Save(ctx context.Context, playerID string, s engine.Session) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s.Clone()
	return nil
}

// Load implements Store
func (m *MemoryStore) Load(ctx context.Context, playerID string) (engine.Session, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return engine.Session{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return engine.Session{}, ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Delete implements Store
func (m *MemoryStore) Delete(ctx context.Context, playerID string) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
