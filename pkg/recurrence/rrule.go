package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

func fromRRuleWeekday(d rrule.Weekday) time.Weekday {
	// rrule counts from Monday = 0
	return time.Weekday((d.Day() + 1) % 7)
}

// options translates the rule into rrule options anchored at baseStart. Monthly rules
// anchored after the 28th select the last existing day up to the anchor day, so the
// 31st becomes Feb 28/29 and Apr 30 instead of skipping those months.
func (r Rule) options(baseStart time.Time) rrule.ROption {
	opt := r.plainOptions()
	opt.Dtstart = baseStart
	if r.Frequency == Monthly && baseStart.Day() > 28 {
		days := make([]int, 0, 4)
		for d := 28; d <= baseStart.Day(); d++ {
			days = append(days, d)
		}
		opt.Bymonthday = days
		opt.Bysetpos = []int{-1}
	}
	return opt
}

func (r Rule) plainOptions() rrule.ROption {
	opt := rrule.ROption{
		Interval: max(r.Interval, 1),
		Wkst:     rrule.MO,
		Count:    r.Count,
	}
	switch r.Frequency {
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Monthly:
		opt.Freq = rrule.MONTHLY
	default:
		opt.Freq = rrule.DAILY
	}
	for _, d := range r.Normalize().Weekdays {
		opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
	}
	if r.Until != nil {
		opt.Until = r.Until.UTC()
	}
	return opt
}

// RRule renders the rule as an RFC 5545 RRULE value, e.g. "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE".
func (r Rule) RRule() string {
	opt := r.plainOptions()
	return opt.RRuleString()
}

// ICalendarRule renders the rule anchored at baseStart, including the month-end clamp
// selectors, for calendar clients that expand it themselves.
func (r Rule) ICalendarRule(baseStart time.Time) string {
	opt := r.options(baseStart)
	opt.Dtstart = time.Time{}
	return opt.RRuleString()
}

// ParseRRule accepts an RRULE value ("FREQ=WEEKLY;COUNT=4", optionally prefixed with
// "RRULE:") and rejects anything outside the supported shapes.
func ParseRRule(value string) (Rule, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	var rule Rule
	switch opt.Freq {
	case rrule.DAILY:
		rule.Frequency = Daily
	case rrule.WEEKLY:
		rule.Frequency = Weekly
	case rrule.MONTHLY:
		rule.Frequency = Monthly
	default:
		return Rule{}, fmt.Errorf("%w: unsupported frequency %s", ErrInvalidRule, opt.Freq)
	}
	if len(opt.Bysetpos) > 0 || len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 || len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 || len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 ||
		len(opt.Byeaster) > 0 {
		return Rule{}, fmt.Errorf("%w: unsupported selector in %q", ErrInvalidRule, value)
	}

	rule.Interval = opt.Interval
	if rule.Interval == 0 {
		rule.Interval = 1
	}
	rule.Count = opt.Count
	if !opt.Until.IsZero() {
		until := opt.Until
		rule.Until = &until
	}
	for _, d := range opt.Byweekday {
		if d.N() != 0 {
			return Rule{}, fmt.Errorf("%w: positional weekday %s", ErrInvalidRule, d)
		}
		rule.Weekdays = append(rule.Weekdays, fromRRuleWeekday(d))
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule.Normalize(), nil
}
