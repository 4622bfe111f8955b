package version

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/internal/rest"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/klokku/sharecal/pkg/permission"
	log "github.com/sirupsen/logrus"
)

type Authorizer interface {
	Authorize(ctx context.Context, userId int, eventId uuid.UUID, required permission.Role) error
}

// Store is the append-only version ledger. Record is the only way the live state of an
// event changes.
type Store struct {
	repo       Repository
	authorizer Authorizer
	clock      utils.Clock
}

func NewStore(repo Repository, authorizer Authorizer, clock utils.Clock) *Store {
	return &Store{repo: repo, authorizer: authorizer, clock: clock}
}

// Record appends version expected+1. expected == 0 creates the event and requires the
// author to be the snapshot's owner; later versions require at least editor access.
// ErrConcurrentModification is returned when another writer advanced the event first.
func (s *Store) Record(ctx context.Context, eventId uuid.UUID, expected int, snapshot Snapshot, authorId int, summary string) (Version, error) {
	if expected < 0 {
		return Version{}, fmt.Errorf("invalid expected version %d", expected)
	}
	if expected == 0 {
		if authorId != snapshot.OwnerId {
			return Version{}, fmt.Errorf("%w: events can only be created by their owner", permission.ErrAccessDenied)
		}
	} else if err := s.authorizer.Authorize(ctx, authorId, eventId, permission.Editor); err != nil {
		return Version{}, err
	}

	v := Version{
		EventId:   eventId,
		Number:    expected + 1,
		Snapshot:  snapshot,
		AuthorId:  authorId,
		CreatedAt: s.clock.Now(),
		Summary:   summary,
	}
	if err := s.repo.Append(ctx, v, expected); err != nil {
		return Version{}, err
	}
	log.Debugf("recorded version %d of event %s by user %d", v.Number, eventId, authorId)
	return v, nil
}

func (s *Store) Get(ctx context.Context, eventId uuid.UUID, number int) (Version, error) {
	return s.repo.Get(ctx, eventId, number)
}

// Diff lists the fields changed between versions from and to. Diff of a version with
// itself is always empty.
func (s *Store) Diff(ctx context.Context, eventId uuid.UUID, from, to int) ([]FieldChange, error) {
	a, err := s.repo.Get(ctx, eventId, from)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.Get(ctx, eventId, to)
	if err != nil {
		return nil, err
	}
	return Compare(a.Snapshot, b.Snapshot), nil
}

// History returns every version in ascending order.
func (s *Store) History(ctx context.Context, eventId uuid.UUID) ([]Entry, error) {
	versions, err := s.repo.List(ctx, eventId, Query{})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(versions))
	for i, v := range versions {
		var changes []FieldChange
		if i > 0 {
			changes = Compare(versions[i-1].Snapshot, v.Snapshot)
		}
		entries = append(entries, toEntry(v, changes))
	}
	return entries, nil
}

// Changelog returns one page of entries, newest first.
func (s *Store) Changelog(ctx context.Context, eventId uuid.UUID, page rest.Page) ([]Entry, error) {
	// one extra row gives the predecessor of the oldest entry on the page
	versions, err := s.repo.List(ctx, eventId, Query{Offset: page.Offset(), Limit: page.PerPage + 1, NewestFirst: true})
	if err != nil {
		return nil, err
	}
	pageSize := min(len(versions), page.PerPage)
	entries := make([]Entry, 0, pageSize)
	for i := 0; i < pageSize; i++ {
		v := versions[i]
		var changes []FieldChange
		if i+1 < len(versions) {
			changes = Compare(versions[i+1].Snapshot, v.Snapshot)
		} else if v.Number > 1 {
			previous, err := s.repo.Get(ctx, eventId, v.Number-1)
			if err != nil {
				return nil, err
			}
			changes = Compare(previous.Snapshot, v.Snapshot)
		}
		entries = append(entries, toEntry(v, changes))
	}
	return entries, nil
}

// Rollback records the snapshot of version target as a new version. History is
// extended, never rewritten.
func (s *Store) Rollback(ctx context.Context, eventId uuid.UUID, target int, expected int, authorId int) (Version, error) {
	targetVersion, err := s.repo.Get(ctx, eventId, target)
	if err != nil {
		return Version{}, err
	}
	return s.Record(ctx, eventId, expected, targetVersion.Snapshot, authorId, fmt.Sprintf("rolled back to version %d", target))
}

// At returns the version that was current at the given instant.
func (s *Store) At(ctx context.Context, eventId uuid.UUID, at time.Time) (Version, error) {
	return s.repo.LatestAt(ctx, eventId, at)
}

func toEntry(v Version, changes []FieldChange) Entry {
	if changes == nil {
		changes = []FieldChange{}
	}
	return Entry{
		Number:    v.Number,
		AuthorId:  v.AuthorId,
		CreatedAt: v.CreatedAt,
		Summary:   v.Summary,
		Changes:   changes,
	}
}
