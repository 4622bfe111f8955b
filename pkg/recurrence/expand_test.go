package recurrence

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-02 is a Monday
var monday = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func collect(t *testing.T, expander Expander, rule *Rule, baseStart, baseEnd, windowStart, windowEnd time.Time) []Occurrence {
	t.Helper()
	seq, err := expander.Expand(rule, baseStart, baseEnd, windowStart, windowEnd)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func starts(occurrences []Occurrence) []time.Time {
	out := make([]time.Time, 0, len(occurrences))
	for _, o := range occurrences {
		out = append(out, o.Start)
	}
	return out
}

func TestExpander_Expand(t *testing.T) {
	expander := NewExpander(0)
	farFuture := monday.AddDate(5, 0, 0)

	t.Run("should yield single occurrence for non recurring event", func(t *testing.T) {
		occurrences := collect(t, expander, nil, monday, monday.Add(time.Hour), monday.AddDate(0, 0, -1), farFuture)

		assert.Equal(t, []Occurrence{{Start: monday, End: monday.Add(time.Hour)}}, occurrences)
	})

	t.Run("should yield nothing for non recurring event outside the window", func(t *testing.T) {
		occurrences := collect(t, expander, nil, monday, monday.Add(time.Hour), monday.Add(time.Hour), farFuture)

		assert.Empty(t, occurrences)
	})

	t.Run("should stop after count", func(t *testing.T) {
		rule := &Rule{Frequency: Daily, Interval: 1, Count: 5}

		occurrences := collect(t, expander, rule, monday, monday.Add(time.Hour), monday, farFuture)

		require.Len(t, occurrences, 5)
		for i, o := range occurrences {
			assert.Equal(t, monday.AddDate(0, 0, i), o.Start)
			assert.Equal(t, time.Hour, o.End.Sub(o.Start))
		}
	})

	t.Run("should clip unbounded rule to the window", func(t *testing.T) {
		rule := &Rule{Frequency: Daily, Interval: 1}
		windowStart := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
		windowEnd := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)

		occurrences := collect(t, expander, rule, monday, monday.Add(time.Hour), windowStart, windowEnd)

		assert.Equal(t, []time.Time{monday.AddDate(0, 0, 2), monday.AddDate(0, 0, 3)}, starts(occurrences))
	})

	t.Run("should include occurrence already running at window start", func(t *testing.T) {
		rule := &Rule{Frequency: Daily, Interval: 1}
		windowStart := monday.AddDate(0, 0, 2).Add(30 * time.Minute)

		occurrences := collect(t, expander, rule, monday, monday.Add(time.Hour), windowStart, windowStart.Add(time.Hour))

		assert.Equal(t, []time.Time{monday.AddDate(0, 0, 2)}, starts(occurrences))
	})

	t.Run("should include until date", func(t *testing.T) {
		until := monday.AddDate(0, 0, 2)
		rule := &Rule{Frequency: Daily, Interval: 1, Until: &until}

		occurrences := collect(t, expander, rule, monday, monday.Add(time.Hour), monday, farFuture)

		assert.Len(t, occurrences, 3)
	})

	t.Run("should generate all weekdays of every other week", func(t *testing.T) {
		rule := &Rule{Frequency: Weekly, Interval: 2, Weekdays: []time.Weekday{time.Friday, time.Monday, time.Wednesday}}

		occurrences := collect(t, expander, rule, monday, monday.Add(time.Hour), monday, monday.AddDate(0, 0, 28))

		assert.Equal(t, []time.Time{
			monday,
			monday.AddDate(0, 0, 2),
			monday.AddDate(0, 0, 4),
			monday.AddDate(0, 0, 14),
			monday.AddDate(0, 0, 16),
			monday.AddDate(0, 0, 18),
		}, starts(occurrences))
	})

	t.Run("should clamp monthly rule to the month length", func(t *testing.T) {
		base := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
		rule := &Rule{Frequency: Monthly, Interval: 1, Count: 4}

		occurrences := collect(t, expander, rule, base, base.Add(time.Hour), base, farFuture)

		assert.Equal(t, []time.Time{
			base,
			time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC),
			time.Date(2026, 4, 30, 10, 0, 0, 0, time.UTC),
		}, starts(occurrences))
	})

	t.Run("should step monthly rule by interval", func(t *testing.T) {
		base := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
		rule := &Rule{Frequency: Monthly, Interval: 2, Count: 3}

		occurrences := collect(t, expander, rule, base, base.Add(time.Hour), base, farFuture)

		assert.Equal(t, []time.Time{
			base,
			time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC),
			time.Date(2026, 5, 15, 8, 0, 0, 0, time.UTC),
		}, starts(occurrences))
	})

	t.Run("should keep wall clock and location across DST change", func(t *testing.T) {
		warsaw, err := time.LoadLocation("Europe/Warsaw")
		require.NoError(t, err)
		base := time.Date(2026, 3, 28, 9, 0, 0, 0, warsaw)
		rule := &Rule{Frequency: Daily, Interval: 1, Count: 2}

		occurrences := collect(t, expander, rule, base, base.Add(time.Hour), base, farFuture)

		require.Len(t, occurrences, 2)
		second := occurrences[1].Start
		assert.Equal(t, "Europe/Warsaw", second.Location().String())
		assert.Equal(t, 9, second.Hour())
		assert.Equal(t, 23*time.Hour, second.Sub(base))
	})

	t.Run("should stop at the occurrence cap", func(t *testing.T) {
		capped := NewExpander(3)
		rule := &Rule{Frequency: Daily, Interval: 1}

		occurrences := collect(t, capped, rule, monday, monday.Add(time.Hour), monday, farFuture)

		assert.Len(t, occurrences, 3)
	})

	t.Run("should honour early break of the consumer", func(t *testing.T) {
		rule := &Rule{Frequency: Daily, Interval: 1}
		seq, err := expander.Expand(rule, monday, monday.Add(time.Hour), monday, farFuture)
		require.NoError(t, err)

		count := 0
		for range seq {
			count++
			if count == 2 {
				break
			}
		}

		assert.Equal(t, 2, count)
	})

	t.Run("should reject invalid rule", func(t *testing.T) {
		_, err := expander.Expand(&Rule{Frequency: Daily}, monday, monday.Add(time.Hour), monday, farFuture)

		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("should reject inverted base interval", func(t *testing.T) {
		_, err := expander.Expand(nil, monday, monday.Add(-time.Hour), monday, farFuture)

		assert.ErrorIs(t, err, ErrInvalidRule)
	})
}

func TestExpander_LastStart(t *testing.T) {
	expander := NewExpander(0)

	t.Run("should return last counted occurrence", func(t *testing.T) {
		last, ok := expander.LastStart(&Rule{Frequency: Daily, Interval: 1, Count: 5}, monday)

		assert.True(t, ok)
		assert.Equal(t, monday.AddDate(0, 0, 4), last)
	})

	t.Run("should return last occurrence before until", func(t *testing.T) {
		until := monday.AddDate(0, 0, 20)

		last, ok := expander.LastStart(&Rule{Frequency: Weekly, Interval: 1, Until: &until}, monday)

		assert.True(t, ok)
		assert.Equal(t, monday.AddDate(0, 0, 14), last)
	})

	t.Run("should report unbounded rule", func(t *testing.T) {
		_, ok := expander.LastStart(&Rule{Frequency: Daily, Interval: 1}, monday)

		assert.False(t, ok)
	})

	t.Run("should return base start for single event", func(t *testing.T) {
		last, ok := expander.LastStart(nil, monday)

		assert.True(t, ok)
		assert.Equal(t, monday, last)
	})
}

func TestOccurrence_Overlaps(t *testing.T) {
	a := Occurrence{Start: monday, End: monday.Add(time.Hour)}

	assert.True(t, a.Overlaps(Occurrence{Start: monday.Add(30 * time.Minute), End: monday.Add(45 * time.Minute)}))
	assert.False(t, a.Overlaps(Occurrence{Start: monday.Add(time.Hour), End: monday.Add(2 * time.Hour)}))
	assert.False(t, a.Overlaps(Occurrence{Start: monday.Add(-time.Hour), End: monday}))
}
