package oauthstate

import (
	"context"
	"sync"
	"time"
)

// MemoryNonceStore keeps outstanding state ids in process. Suitable for a single
// instance.
type MemoryNonceStore struct {
	mu     sync.Mutex
	values map[string]time.Time
	now    func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		values: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryNonceStore) Put(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.values {
		if now.After(exp) {
			delete(s.values, k)
		}
	}
	s.values[id] = now.Add(ttl)
	return nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.values[id]
	if !ok {
		return false, nil
	}
	delete(s.values, id)

	if s.now().After(exp) {
		return false, nil
	}
	return true, nil
}
