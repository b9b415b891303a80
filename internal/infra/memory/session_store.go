package memory

import (
	"context"
	"sync"

	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// A single mutex serializes updates, which makes the submission guard atomic.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CoopSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.CoopSession),
	}
}

func (s *SessionStore) Create(_ context.Context, session *domain.CoopSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.CoopSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) Update(_ context.Context, id string, mutate app.MutateFunc) (*domain.CoopSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	next := session.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.sessions[id] = next
	return next.Clone(), nil
}

func (s *SessionStore) ListByParticipant(_ context.Context, userID string) ([]*domain.CoopSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.CoopSession
	for _, session := range s.sessions {
		if session.IsParticipant(userID) && !session.Status.Terminal() {
			out = append(out, session.Clone())
		}
	}
	return out, nil
}

func (s *SessionStore) ListByStatus(_ context.Context, statuses ...domain.Status) ([]*domain.CoopSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.CoopSession
	for _, session := range s.sessions {
		for _, status := range statuses {
			if session.Status == status {
				out = append(out, session.Clone())
				break
			}
		}
	}
	return out, nil
}
