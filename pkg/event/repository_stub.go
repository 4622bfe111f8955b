package event

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/pkg/permission"
	"github.com/klokku/sharecal/pkg/version"
)

// RepositoryStub derives live events from an in-memory version ledger, the same way the
// database keeps the events table in step with event_versions.
type RepositoryStub struct {
	versions    *version.RepositoryStub
	permissions *permission.RepositoryStub
}

func NewRepositoryStub(versions *version.RepositoryStub, permissions *permission.RepositoryStub) *RepositoryStub {
	return &RepositoryStub{versions: versions, permissions: permissions}
}

func (s *RepositoryStub) FindEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	latest, ok := s.versions.Latest(id)
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return fromVersion(latest, s.versions.Created(id)), nil
}

func (s *RepositoryStub) FindOwner(ctx context.Context, id uuid.UUID) (int, error) {
	latest, ok := s.versions.Latest(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return latest.Snapshot.OwnerId, nil
}

func (s *RepositoryStub) ListAccessible(ctx context.Context, userId int, q Query) ([]Event, error) {
	shared := s.permissions.EventIdsFor(userId)
	events := make([]Event, 0)
	for _, id := range s.versions.EventIds() {
		event, err := s.FindEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		if event.Deleted || (event.OwnerId != userId && !slices.Contains(shared, id)) {
			continue
		}
		events = append(events, event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	if q.Offset >= len(events) {
		return []Event{}, nil
	}
	events = events[q.Offset:]
	if q.Limit > 0 && q.Limit < len(events) {
		events = events[:q.Limit]
	}
	return events, nil
}

// Count returns the number of events ever created, tombstoned ones included.
func (s *RepositoryStub) Count() int {
	return len(s.versions.EventIds())
}
