package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/klokku/sharecal/pkg/recurrence"
)

var (
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrVersionNotFound        = errors.New("version not found")
	ErrEventNotFound          = errors.New("event not found")
)

// Snapshot is the full tracked state of an event at one version.
type Snapshot struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	TimeZone    string           `json:"timeZone"`
	Recurrence  *recurrence.Rule `json:"recurrence,omitempty"`
	OwnerId     int              `json:"ownerId"`
	Deleted     bool             `json:"deleted"`
}

type Version struct {
	EventId   uuid.UUID
	Number    int
	Snapshot  Snapshot
	AuthorId  int
	CreatedAt time.Time
	Summary   string
}

// Entry is one changelog line. Changes are relative to the previous version and
// empty for version 1.
type Entry struct {
	Number    int
	AuthorId  int
	CreatedAt time.Time
	Summary   string
	Changes   []FieldChange
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot restores start and end into the snapshot's time zone, which JSON
// alone only keeps as an offset.
func decodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	s.Start = utils.InZone(s.Start, s.TimeZone)
	s.End = utils.InZone(s.End, s.TimeZone)
	return s, nil
}

func encodeRule(rule *recurrence.Rule) ([]byte, error) {
	if rule == nil {
		return nil, nil
	}
	return json.Marshal(rule)
}
