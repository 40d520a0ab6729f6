package session

import (
	"context"
	"sync"

	"stocktake/pkg/sentinel"
)

// InMemoryStore keeps session state in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	active   *Session
	history  []Session
	operator *Operator
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveActive(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = &sess
	return nil
}

func (s *InMemoryStore) LoadActive(_ context.Context) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return Session{}, sentinel.ErrNotFound
	}
	return *s.active, nil
}

func (s *InMemoryStore) ClearActive(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
	return nil
}

func (s *InMemoryStore) AppendHistory(_ context.Context, sess Session, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]Session{sess}, s.history...)
	if limit > 0 && len(s.history) > limit {
		s.history = s.history[:limit]
	}
	return nil
}

func (s *InMemoryStore) History(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Session(nil), s.history...), nil
}

func (s *InMemoryStore) SaveLastOperator(_ context.Context, op Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operator = &op
	return nil
}

func (s *InMemoryStore) LastOperator(_ context.Context) (Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.operator == nil {
		return Operator{}, sentinel.ErrNotFound
	}
	return *s.operator, nil
}
