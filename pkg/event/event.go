package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/klokku/sharecal/pkg/conflict"
	"github.com/klokku/sharecal/pkg/recurrence"
	"github.com/klokku/sharecal/pkg/version"
)

var (
	ErrEventNotFound = version.ErrEventNotFound
	ErrValidation    = errors.New("validation failed")
)

const maxTitleLength = 255

// Event is the live state of an event. It always equals the snapshot of its latest
// version.
type Event struct {
	Id          uuid.UUID
	OwnerId     int
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Recurrence  *recurrence.Rule
	Version     int
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e Event) Snapshot() version.Snapshot {
	return version.Snapshot{
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
		TimeZone:    e.TimeZone,
		Recurrence:  e.Recurrence,
		OwnerId:     e.OwnerId,
		Deleted:     e.Deleted,
	}
}

func (e Event) schedule() conflict.Schedule {
	return conflict.Schedule{
		EventId:    e.Id,
		Title:      e.Title,
		Start:      e.Start,
		End:        e.End,
		Recurrence: e.Recurrence,
		Deleted:    e.Deleted,
	}
}

func fromVersion(v version.Version, createdAt time.Time) Event {
	s := v.Snapshot
	return Event{
		Id:          v.EventId,
		OwnerId:     s.OwnerId,
		Title:       s.Title,
		Description: s.Description,
		Start:       s.Start,
		End:         s.End,
		TimeZone:    s.TimeZone,
		Recurrence:  s.Recurrence,
		Version:     v.Number,
		Deleted:     s.Deleted,
		CreatedAt:   createdAt,
		UpdatedAt:   v.CreatedAt,
	}
}

// Draft carries the fields of an event to be created.
type Draft struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	// TimeZone is an IANA name. Empty means the zone of Start.
	TimeZone   string
	Recurrence *recurrence.Rule
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title           *string
	Description     *string
	Start           *time.Time
	End             *time.Time
	TimeZone        *string
	Recurrence      *recurrence.Rule
	ClearRecurrence bool
	// ExpectedVersion is the version the caller last read. Zero means the version read
	// by the update itself.
	ExpectedVersion int
}

func (p Patch) apply(e Event) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.TimeZone != nil {
		e.TimeZone = *p.TimeZone
	}
	if p.ClearRecurrence {
		e.Recurrence = nil
	} else if p.Recurrence != nil {
		e.Recurrence = p.Recurrence
	}
	return e
}

// Result is a written event with the conflicts found for it. Conflicts never block
// a write.
type Result struct {
	Event    Event
	Warnings []conflict.Conflict
}

type BatchItem struct {
	Index    int
	Event    *Event
	Warnings []conflict.Conflict
	Err      error
}

// normalize validates e and moves its instants into its time zone.
func normalize(e Event) (Event, error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return Event{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(e.Title) > maxTitleLength {
		return Event{}, fmt.Errorf("%w: title is longer than %d characters", ErrValidation, maxTitleLength)
	}
	return normalizeSchedule(e)
}

// normalizeSchedule checks the time fields and the recurrence rule. An empty zone is
// taken from Start.
func normalizeSchedule(e Event) (Event, error) {
	if e.Start.IsZero() || e.End.IsZero() {
		return Event{}, fmt.Errorf("%w: start and end are required", ErrValidation)
	}
	if !e.End.After(e.Start) {
		return Event{}, fmt.Errorf("%w: end %s must be after start %s", ErrValidation,
			e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}

	if e.TimeZone == "" {
		e.TimeZone = utils.ZoneName(e.Start)
	} else if !utils.ValidZone(e.TimeZone) {
		return Event{}, fmt.Errorf("%w: unknown time zone %q", ErrValidation, e.TimeZone)
	}
	e.Start = utils.InZone(e.Start, e.TimeZone)
	e.End = utils.InZone(e.End, e.TimeZone)

	if e.Recurrence != nil {
		if err := e.Recurrence.Validate(); err != nil {
			return Event{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		rule := e.Recurrence.Normalize()
		e.Recurrence = &rule
	}
	return e, nil
}
