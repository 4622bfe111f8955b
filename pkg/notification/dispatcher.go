package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// Message is the JSON document sent to subscribers of an event channel.
type Message struct {
	Type       event_bus.EventType `json:"type"`
	EventId    uuid.UUID           `json:"eventId"`
	OccurredAt time.Time           `json:"occurredAt"`
	Payload    any                 `json:"payload"`
}

// Dispatcher forwards committed domain events to per-event channels named
// "<prefix>:event:<id>".
type Dispatcher struct {
	publisher Publisher
	prefix    string
}

func NewDispatcher(publisher Publisher, prefix string) *Dispatcher {
	return &Dispatcher{publisher: publisher, prefix: prefix}
}

func (d *Dispatcher) Channel(eventId uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s", d.prefix, eventId)
}

// Register subscribes the dispatcher to every domain event type. The returned function
// removes all subscriptions.
func (d *Dispatcher) Register(bus *event_bus.EventBus) (unsubscribe func()) {
	unsubscribers := []func(){
		forward(d, bus, event_bus.EventCreatedType, func(p event_bus.EventCreated) uuid.UUID { return p.EventId }),
		forward(d, bus, event_bus.EventUpdatedType, func(p event_bus.EventUpdated) uuid.UUID { return p.EventId }),
		forward(d, bus, event_bus.EventDeletedType, func(p event_bus.EventDeleted) uuid.UUID { return p.EventId }),
		forward(d, bus, event_bus.EventRolledBackType, func(p event_bus.EventRolledBack) uuid.UUID { return p.EventId }),
		forward(d, bus, event_bus.PermissionChangedType, func(p event_bus.PermissionChanged) uuid.UUID { return p.EventId }),
	}
	return func() {
		for _, u := range unsubscribers {
			u()
		}
	}
}

func forward[T any](d *Dispatcher, bus *event_bus.EventBus, eventType event_bus.EventType, eventId func(T) uuid.UUID) func() {
	return event_bus.SubscribeTyped(bus, eventType, func(e event_bus.EventT[T]) error {
		id := eventId(e.Data)
		payload, err := json.Marshal(Message{
			Type:       e.Type,
			EventId:    id,
			OccurredAt: e.Timestamp,
			Payload:    e.Data,
		})
		if err != nil {
			return fmt.Errorf("failed to encode %s notification: %w", eventType, err)
		}
		channel := d.Channel(id)
		if err := d.publisher.Publish(e.Context(), channel, payload); err != nil {
			log.Errorf("failed to deliver %s notification: %v", eventType, err)
			return err
		}
		log.Tracef("delivered %s to %s", eventType, channel)
		return nil
	})
}
