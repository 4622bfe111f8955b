package version

import (
	"github.com/klokku/sharecal/pkg/recurrence"
)

type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

type trackedField struct {
	name  string
	equal func(a, b Snapshot) bool
	value func(s Snapshot) any
}

var trackedFields = []trackedField{
	{
		name:  "title",
		equal: func(a, b Snapshot) bool { return a.Title == b.Title },
		value: func(s Snapshot) any { return s.Title },
	},
	{
		name:  "description",
		equal: func(a, b Snapshot) bool { return a.Description == b.Description },
		value: func(s Snapshot) any { return s.Description },
	},
	{
		name:  "start",
		equal: func(a, b Snapshot) bool { return a.Start.Equal(b.Start) },
		value: func(s Snapshot) any { return s.Start },
	},
	{
		name:  "end",
		equal: func(a, b Snapshot) bool { return a.End.Equal(b.End) },
		value: func(s Snapshot) any { return s.End },
	},
	{
		name:  "timeZone",
		equal: func(a, b Snapshot) bool { return a.TimeZone == b.TimeZone },
		value: func(s Snapshot) any { return s.TimeZone },
	},
	{
		name:  "recurrence",
		equal: func(a, b Snapshot) bool { return recurrence.Equal(a.Recurrence, b.Recurrence) },
		value: func(s Snapshot) any { return s.Recurrence },
	},
	{
		name:  "ownerId",
		equal: func(a, b Snapshot) bool { return a.OwnerId == b.OwnerId },
		value: func(s Snapshot) any { return s.OwnerId },
	},
	{
		name:  "deleted",
		equal: func(a, b Snapshot) bool { return a.Deleted == b.Deleted },
		value: func(s Snapshot) any { return s.Deleted },
	},
}

// Compare lists the tracked fields whose values differ between from and to, in a fixed
// field order.
func Compare(from, to Snapshot) []FieldChange {
	changes := make([]FieldChange, 0)
	for _, f := range trackedFields {
		if f.equal(from, to) {
			continue
		}
		changes = append(changes, FieldChange{
			Field:    f.name,
			OldValue: f.value(from),
			NewValue: f.value(to),
		})
	}
	return changes
}

// Equal reports whether two snapshots describe the same event state.
func (s Snapshot) Equal(other Snapshot) bool {
	return len(Compare(s, other)) == 0
}
