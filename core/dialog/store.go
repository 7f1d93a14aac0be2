package dialog

import (
	"context"
	"sync"
)

// Store persists sessions between dispatches. Implementations must tolerate
// concurrent calls for different users; the engine serializes per user.
type Store interface {
	// Get returns the stored session for a user, or nil when none exists.
	Get(ctx context.Context, userID int64) (*Session, error)
	// Put stores the session.
	Put(ctx context.Context, s *Session) error
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore constructs an in-memory Store used by default and in tests.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]*Session)}
}

func (m *memoryStore) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID], nil
}

func (m *memoryStore) Put(_ context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s
	return nil
}
