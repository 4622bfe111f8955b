package version

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RepositoryStub keeps the ledger in memory. The latest version of each event doubles
// as its live row.
type RepositoryStub struct {
	mu       sync.RWMutex
	versions map[uuid.UUID][]Version
	order    []uuid.UUID
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{versions: make(map[uuid.UUID][]Version)}
}

func (s *RepositoryStub) Append(ctx context.Context, v Version, expected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.versions[v.EventId]
	switch {
	case !ok && expected > 0:
		return fmt.Errorf("%w: %s", ErrEventNotFound, v.EventId)
	case len(existing) != expected:
		return fmt.Errorf("%w: event %s is at version %d, expected %d", ErrConcurrentModification, v.EventId, len(existing), expected)
	}
	if !ok {
		s.order = append(s.order, v.EventId)
	}
	s.versions[v.EventId] = append(existing, v)
	return nil
}

func (s *RepositoryStub) Get(ctx context.Context, eventId uuid.UUID, number int) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.versions[eventId]
	if !ok {
		return Version{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventId)
	}
	if number < 1 || number > len(versions) {
		return Version{}, fmt.Errorf("%w: version %d of event %s", ErrVersionNotFound, number, eventId)
	}
	return versions[number-1], nil
}

func (s *RepositoryStub) List(ctx context.Context, eventId uuid.UUID, q Query) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := slices.Clone(s.versions[eventId])
	if q.NewestFirst {
		slices.Reverse(versions)
	}
	if q.Offset >= len(versions) {
		return []Version{}, nil
	}
	versions = versions[q.Offset:]
	if q.Limit > 0 && q.Limit < len(versions) {
		versions = versions[:q.Limit]
	}
	return versions, nil
}

func (s *RepositoryStub) LatestAt(ctx context.Context, eventId uuid.UUID, at time.Time) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.versions[eventId]
	if !ok {
		return Version{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventId)
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].CreatedAt.After(at) {
			return versions[i], nil
		}
	}
	return Version{}, fmt.Errorf("%w: event %s at %s", ErrVersionNotFound, eventId, at)
}

// Latest returns the current version of an event.
func (s *RepositoryStub) Latest(eventId uuid.UUID) (Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.versions[eventId]
	if !ok {
		return Version{}, false
	}
	return versions[len(versions)-1], true
}

// Created returns the time the first version was recorded.
func (s *RepositoryStub) Created(eventId uuid.UUID) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.versions[eventId]
	if len(versions) == 0 {
		return time.Time{}
	}
	return versions[0].CreatedAt
}

// EventIds lists events in creation order.
func (s *RepositoryStub) EventIds() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

func (s *RepositoryStub) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = make(map[uuid.UUID][]Version)
	s.order = nil
}
