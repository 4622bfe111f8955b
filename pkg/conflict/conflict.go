package conflict

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/pkg/permission"
	"github.com/klokku/sharecal/pkg/recurrence"
)

// Schedule is the part of an event conflict detection looks at.
type Schedule struct {
	EventId    uuid.UUID
	Title      string
	Start      time.Time
	End        time.Time
	Recurrence *recurrence.Rule
	Deleted    bool
}

// Conflict is one overlapping pair: an occurrence of the candidate and an occurrence of
// another event.
type Conflict struct {
	EventId        uuid.UUID `json:"eventId"`
	Title          string    `json:"title"`
	CandidateStart time.Time `json:"candidateStart"`
	CandidateEnd   time.Time `json:"candidateEnd"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

// Lister supplies every event visible to a user.
type Lister interface {
	ListAccessible(ctx context.Context, userId int) ([]Schedule, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, userId int, eventId uuid.UUID, required permission.Role) error
}

// EventIds returns the distinct conflicting event ids in order of first appearance.
func EventIds(conflicts []Conflict) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(conflicts))
	ids := make([]uuid.UUID, 0)
	for _, c := range conflicts {
		if seen[c.EventId] {
			continue
		}
		seen[c.EventId] = true
		ids = append(ids, c.EventId)
	}
	return ids
}
