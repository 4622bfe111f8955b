package conflict

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/pkg/permission"
	"github.com/klokku/sharecal/pkg/recurrence"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHorizon = 365 * 24 * time.Hour
	DefaultWorkers = 8
)

type Detector struct {
	lister     Lister
	authorizer Authorizer
	expander   recurrence.Expander
	horizon    time.Duration
	workers    int
}

func NewDetector(lister Lister, authorizer Authorizer, expander recurrence.Expander, horizon time.Duration, workers int) *Detector {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Detector{
		lister:     lister,
		authorizer: authorizer,
		expander:   expander,
		horizon:    horizon,
		workers:    workers,
	}
}

// FindConflicts reports every occurrence of the events userId can view that overlaps an
// occurrence of candidate. excludeEventId is skipped, as is the candidate itself.
// The result is sorted by candidate occurrence, then by event id.
func (d *Detector) FindConflicts(ctx context.Context, userId int, candidate Schedule, excludeEventId uuid.UUID) ([]Conflict, error) {
	windowStart, windowEnd := d.window(candidate)
	expanded, err := d.expander.Expand(candidate.Recurrence, candidate.Start, candidate.End, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	occurrences := slices.Collect(expanded)
	if len(occurrences) == 0 {
		return []Conflict{}, nil
	}

	schedules, err := d.lister.ListAccessible(ctx, userId)
	if err != nil {
		return nil, err
	}

	found := make([][]Conflict, len(schedules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, other := range schedules {
		if other.Deleted || other.EventId == excludeEventId || other.EventId == candidate.EventId {
			continue
		}
		g.Go(func() error {
			err := d.authorizer.Authorize(gctx, userId, other.EventId, permission.Viewer)
			if errors.Is(err, permission.ErrAccessDenied) {
				return nil
			}
			if err != nil {
				return err
			}
			conflicts, err := d.overlaps(occurrences, other, windowStart, windowEnd)
			if err != nil {
				log.Warnf("skipping event %s in conflict check: %v", other.EventId, err)
				return nil
			}
			found[i] = conflicts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := slices.Concat(found...)
	if result == nil {
		result = []Conflict{}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CandidateStart.Equal(b.CandidateStart) {
			return a.CandidateStart.Before(b.CandidateStart)
		}
		if a.EventId != b.EventId {
			return a.EventId.String() < b.EventId.String()
		}
		return a.Start.Before(b.Start)
	})
	log.Debugf("found %d conflicts for user %d across %d events", len(result), userId, len(schedules))
	return result, nil
}

// window spans the candidate from its first start to the end of its last occurrence.
// Series without an end, or ending past the horizon, are cut at the horizon.
func (d *Detector) window(candidate Schedule) (time.Time, time.Time) {
	limit := candidate.Start.Add(d.horizon)
	last, ok := d.expander.LastStart(candidate.Recurrence, candidate.Start)
	if !ok || last.After(limit) {
		last = limit
	}
	return candidate.Start, last.Add(candidate.End.Sub(candidate.Start))
}

// overlaps matches the other event's occurrences against the sorted candidate
// occurrences. All candidate occurrences share one duration, so their ends are sorted too.
func (d *Detector) overlaps(candidates []recurrence.Occurrence, other Schedule, windowStart, windowEnd time.Time) ([]Conflict, error) {
	var pad time.Duration
	if other.Recurrence != nil {
		pad = other.Recurrence.Period()
	}
	expanded, err := d.expander.Expand(other.Recurrence, other.Start, other.End, windowStart.Add(-pad), windowEnd.Add(pad))
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for occurrence := range expanded {
		first := sort.Search(len(candidates), func(i int) bool {
			return candidates[i].End.After(occurrence.Start)
		})
		for _, c := range candidates[first:] {
			if !c.Start.Before(occurrence.End) {
				break
			}
			if !c.Overlaps(occurrence) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				EventId:        other.EventId,
				Title:          other.Title,
				CandidateStart: c.Start,
				CandidateEnd:   c.End,
				Start:          occurrence.Start,
				End:            occurrence.End,
			})
		}
	}
	return conflicts, nil
}
