package event

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

const icsLocalFormat = "20060102T150405"

// renderICS writes a single-event iCalendar document. Events in a named zone keep
// local DTSTART/DTEND with a TZID so the RRULE repeats in that zone.
func renderICS(e Event, now time.Time) string {
	cal := ical.NewCalendarFor("sharecal")
	cal.SetMethod(ical.MethodPublish)

	ve := cal.AddEvent(e.Id.String() + "@sharecal")
	ve.SetDtStampTime(now)
	ve.SetCreatedTime(e.CreatedAt)
	ve.SetModifiedAt(e.UpdatedAt)
	ve.SetSequence(e.Version - 1)
	ve.SetSummary(e.Title)
	if e.Description != "" {
		ve.SetDescription(e.Description)
	}

	if namedZone(e.TimeZone) {
		ve.SetProperty(ical.ComponentPropertyDtStart, e.Start.Format(icsLocalFormat), ical.WithTZID(e.TimeZone))
		ve.SetProperty(ical.ComponentPropertyDtEnd, e.End.Format(icsLocalFormat), ical.WithTZID(e.TimeZone))
	} else {
		ve.SetStartAt(e.Start)
		ve.SetEndAt(e.End)
	}
	if e.Recurrence != nil {
		ve.AddRrule(e.Recurrence.ICalendarRule(e.Start))
	}
	return cal.Serialize()
}

func namedZone(zone string) bool {
	return zone != "" && zone != "UTC" && !strings.HasPrefix(zone, "+") && !strings.HasPrefix(zone, "-")
}
