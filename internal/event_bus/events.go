package event_bus

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventCreatedType      EventType = "event.created"
	EventUpdatedType      EventType = "event.updated"
	EventDeletedType      EventType = "event.deleted"
	EventRolledBackType   EventType = "event.rolled_back"
	PermissionChangedType EventType = "permission.changed"
)

type EventCreated struct {
	EventId uuid.UUID `json:"eventId"`
	Version int       `json:"version"`
	ActorId int       `json:"actorId"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type EventUpdated struct {
	EventId uuid.UUID `json:"eventId"`
	Version int       `json:"version"`
	ActorId int       `json:"actorId"`
	// Fields lists the names of the changed fields.
	Fields []string `json:"fields"`
}

type EventDeleted struct {
	EventId uuid.UUID `json:"eventId"`
	Version int       `json:"version"`
	ActorId int       `json:"actorId"`
}

type EventRolledBack struct {
	EventId       uuid.UUID `json:"eventId"`
	Version       int       `json:"version"`
	TargetVersion int       `json:"targetVersion"`
	ActorId       int       `json:"actorId"`
}

type PermissionChanged struct {
	EventId uuid.UUID `json:"eventId"`
	UserId  int       `json:"userId"`
	// Role is empty when the permission was revoked.
	Role    string `json:"role"`
	ActorId int    `json:"actorId"`
}
