package recurrence

import (
	"fmt"
	"iter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

const DefaultMaxOccurrences = 5000

type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open intervals, so touching occurrences do not overlap.
func (o Occurrence) Overlaps(other Occurrence) bool {
	return o.Start.Before(other.End) && other.Start.Before(o.End)
}

type Expander struct {
	// MaxOccurrences caps the number of occurrences a single expansion may yield.
	MaxOccurrences int
}

func NewExpander(maxOccurrences int) Expander {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return Expander{MaxOccurrences: maxOccurrences}
}

// Expand lazily yields the occurrences of an event overlapping [windowStart, windowEnd).
// A nil rule yields the base interval alone. Every occurrence keeps the duration of the
// base interval and the location of baseStart.
func (e Expander) Expand(rule *Rule, baseStart, baseEnd, windowStart, windowEnd time.Time) (iter.Seq[Occurrence], error) {
	if baseEnd.Before(baseStart) {
		return nil, fmt.Errorf("%w: base end %s is before base start %s", ErrInvalidRule, baseEnd, baseStart)
	}
	window := Occurrence{Start: windowStart, End: windowEnd}

	if rule == nil {
		base := Occurrence{Start: baseStart, End: baseEnd}
		return func(yield func(Occurrence) bool) {
			if base.Overlaps(window) {
				yield(base)
			}
		}, nil
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(rule.options(baseStart))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	duration := baseEnd.Sub(baseStart)
	limit := e.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}

	return func(yield func(Occurrence) bool) {
		next := r.Iterator()
		yielded := 0
		for {
			start, ok := next()
			if !ok || !start.Before(windowEnd) {
				return
			}
			occurrence := Occurrence{Start: start, End: start.Add(duration)}
			if !occurrence.End.After(windowStart) {
				continue
			}
			if yielded == limit {
				log.Warnf("recurrence expansion truncated at %d occurrences (rule %s)", limit, rule.RRule())
				return
			}
			yielded++
			if !yield(occurrence) {
				return
			}
		}
	}, nil
}

// LastStart returns the start of the final occurrence of a bounded rule. ok is false
// when the rule repeats forever or yields nothing. Counted rules are followed at most
// MaxOccurrences steps.
func (e Expander) LastStart(rule *Rule, baseStart time.Time) (time.Time, bool) {
	if rule == nil {
		return baseStart, true
	}
	if !rule.Bounded() || rule.Validate() != nil {
		return time.Time{}, false
	}
	r, err := rrule.NewRRule(rule.options(baseStart))
	if err != nil {
		return time.Time{}, false
	}
	if rule.Until != nil {
		last := r.Before(rule.Until.Add(time.Second), false)
		return last, !last.IsZero()
	}

	limit := e.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}
	next := r.Iterator()
	var last time.Time
	found := false
	for i := 0; i < min(rule.Count, limit); i++ {
		start, ok := next()
		if !ok {
			break
		}
		last, found = start, true
	}
	return last, found
}
