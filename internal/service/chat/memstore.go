package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/omnimind/omnimind-engine/internal/model/chat"
)

// MemoryStore implements Store with in-process maps, suitable for local
// development and tests when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
}

// NewMemoryStore bootstraps the in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

// CreateSession registers a new session.
func (s *MemoryStore) CreateSession(_ context.Context, session chat.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	return nil
}

// GetSession retrieves a session by identifier.
func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// ListSessions returns the owner's sessions, most recently updated first.
func (s *MemoryStore) ListSessions(_ context.Context, ownerID string) ([]chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]chat.Session, 0, 8)
	for _, session := range s.sessions {
		if session.OwnerID == ownerID {
			sessions = append(sessions, session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// SaveMessage appends a message to the session history.
func (s *MemoryStore) SaveMessage(_ context.Context, message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return ErrSessionNotFound
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

// ListMessages returns stored messages for the provided session in order.
func (s *MemoryStore) ListMessages(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// TouchSession advances the session's UpdatedAt timestamp.
func (s *MemoryStore) TouchSession(_ context.Context, sessionID string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	session.UpdatedAt = updatedAt
	s.sessions[sessionID] = session
	return nil
}
