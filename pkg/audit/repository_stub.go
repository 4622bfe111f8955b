package audit

import (
	"context"
	"sync"
)

type RepositoryStub struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{}
}

func (s *RepositoryStub) Insert(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Id = int64(len(s.entries) + 1)
	s.entries = append(s.entries, e)
	return nil
}

func (s *RepositoryStub) ListForUser(ctx context.Context, userId int, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Entry, 0)
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if s.entries[i].UserId == userId {
			result = append(result, s.entries[i])
		}
	}
	return result, nil
}

// All returns every stored entry in insertion order.
func (s *RepositoryStub) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}
