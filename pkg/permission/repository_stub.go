package permission

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type RepositoryStub struct {
	mu          sync.RWMutex
	permissions map[cacheKey]Permission
	// Finds counts repository lookups so tests can observe caching.
	Finds int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{permissions: make(map[cacheKey]Permission)}
}

func (s *RepositoryStub) Find(ctx context.Context, eventId uuid.UUID, userId int) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Finds++
	p, ok := s.permissions[cacheKey{eventId, userId}]
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}
	return p, nil
}

func (s *RepositoryStub) Upsert(ctx context.Context, p Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[cacheKey{p.EventId, p.UserId}] = p
	return nil
}

func (s *RepositoryStub) Delete(ctx context.Context, eventId uuid.UUID, userId int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cacheKey{eventId, userId}
	if _, ok := s.permissions[key]; !ok {
		return false, nil
	}
	delete(s.permissions, key)
	return true, nil
}

func (s *RepositoryStub) ListForEvent(ctx context.Context, eventId uuid.UUID) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Permission, 0)
	for key, p := range s.permissions {
		if key.eventId == eventId {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].GrantedAt.Equal(result[j].GrantedAt) {
			return result[i].GrantedAt.Before(result[j].GrantedAt)
		}
		return result[i].UserId < result[j].UserId
	})
	return result, nil
}

// EventIdsFor lists events on which userId holds any stored grant.
func (s *RepositoryStub) EventIdsFor(userId int) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0)
	for key := range s.permissions {
		if key.userId == userId {
			ids = append(ids, key.eventId)
		}
	}
	return ids
}

func (s *RepositoryStub) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions = make(map[cacheKey]Permission)
	s.Finds = 0
}
