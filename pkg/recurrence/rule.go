package recurrence

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var ErrInvalidRule = errors.New("invalid recurrence rule")

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// Rule is the closed set of recurrence shapes the scheduler understands.
// Weekdays are only meaningful for Weekly. Until and Count are mutually exclusive.
type Rule struct {
	Frequency Frequency
	Interval  int
	Weekdays  []time.Weekday
	Until     *time.Time
	Count     int
}

func (r Rule) Validate() error {
	switch r.Frequency {
	case Daily, Weekly, Monthly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1", ErrInvalidRule)
	}
	if len(r.Weekdays) > 0 && r.Frequency != Weekly {
		return fmt.Errorf("%w: weekdays are only allowed for weekly rules", ErrInvalidRule)
	}
	for _, d := range r.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: unknown weekday %d", ErrInvalidRule, d)
		}
	}
	if r.Count < 0 {
		return fmt.Errorf("%w: count must not be negative", ErrInvalidRule)
	}
	if r.Until != nil && r.Count > 0 {
		return fmt.Errorf("%w: until and count are mutually exclusive", ErrInvalidRule)
	}
	return nil
}

// Bounded reports whether the rule ends on its own.
func (r Rule) Bounded() bool {
	return r.Until != nil || r.Count > 0
}

// Period is the length of one full step of the rule. Months count as 31 days so the
// value never underestimates a calendar month.
func (r Rule) Period() time.Duration {
	interval := max(r.Interval, 1)
	switch r.Frequency {
	case Weekly:
		return time.Duration(interval) * 7 * 24 * time.Hour
	case Monthly:
		return time.Duration(interval) * 31 * 24 * time.Hour
	default:
		return time.Duration(interval) * 24 * time.Hour
	}
}

// Normalize returns a copy with weekdays deduplicated and ordered Monday first.
func (r Rule) Normalize() Rule {
	out := r
	if len(r.Weekdays) == 0 {
		out.Weekdays = nil
		return out
	}
	days := slices.Clone(r.Weekdays)
	slices.SortFunc(days, func(a, b time.Weekday) int {
		return mondayIndex(a) - mondayIndex(b)
	})
	out.Weekdays = slices.Compact(days)
	if r.Until != nil {
		until := *r.Until
		out.Until = &until
	}
	return out
}

// Equal compares rules structurally. Weekday order is irrelevant and until dates are
// compared as instants.
func Equal(a, b *Rule) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	na, nb := a.Normalize(), b.Normalize()
	if na.Frequency != nb.Frequency || na.Interval != nb.Interval || na.Count != nb.Count {
		return false
	}
	if !slices.Equal(na.Weekdays, nb.Weekdays) {
		return false
	}
	if (na.Until == nil) != (nb.Until == nil) {
		return false
	}
	return na.Until == nil || na.Until.Equal(*nb.Until)
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

type ruleJSON struct {
	Frequency Frequency  `json:"frequency"`
	Interval  *int       `json:"interval,omitempty"`
	Weekdays  []string   `json:"weekdays,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	Count     int        `json:"count,omitempty"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	interval := r.Interval
	out := ruleJSON{
		Frequency: r.Frequency,
		Interval:  &interval,
		Until:     r.Until,
		Count:     r.Count,
	}
	for _, d := range r.Weekdays {
		out.Weekdays = append(out.Weekdays, strings.ToLower(d.String()))
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts weekday names ("monday") and two letter codes ("MO").
// A missing interval means 1.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var in ruleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rule := Rule{
		Frequency: Frequency(strings.ToLower(string(in.Frequency))),
		Interval:  1,
		Until:     in.Until,
		Count:     in.Count,
	}
	if in.Interval != nil {
		rule.Interval = *in.Interval
	}
	for _, name := range in.Weekdays {
		d, err := ParseWeekday(name)
		if err != nil {
			return err
		}
		rule.Weekdays = append(rule.Weekdays, d)
	}
	*r = rule
	return nil
}

var weekdayCodes = map[string]time.Weekday{
	"mo": time.Monday,
	"tu": time.Tuesday,
	"we": time.Wednesday,
	"th": time.Thursday,
	"fr": time.Friday,
	"sa": time.Saturday,
	"su": time.Sunday,
}

func ParseWeekday(name string) (time.Weekday, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if d, ok := weekdayCodes[lower]; ok {
		return d, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == lower {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, name)
}
