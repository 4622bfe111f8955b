package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("should call handlers in subscription order", func(t *testing.T) {
		// given
		bus := NewEventBus()
		var calls []int
		for i := range 5 {
			bus.Subscribe(EventDeletedType, func(Event) error {
				calls = append(calls, i)
				return nil
			})
		}

		// when
		err := bus.Publish(NewEvent(ctx, EventDeletedType, EventDeleted{EventId: uuid.New()}))

		// then
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, calls)
	})

	t.Run("should keep going after failures and join errors", func(t *testing.T) {
		// given
		bus := NewEventBus()
		failure := errors.New("redis down")
		called := false
		bus.Subscribe(EventCreatedType, func(Event) error { return failure })
		bus.Subscribe(EventCreatedType, func(Event) error { panic("boom") })
		bus.Subscribe(EventCreatedType, func(Event) error {
			called = true
			return nil
		})

		// when
		err := bus.Publish(NewEvent(ctx, EventCreatedType, EventCreated{}))

		// then
		assert.ErrorIs(t, err, failure)
		assert.ErrorContains(t, err, "2 handler(s) failed")
		assert.True(t, called)
	})

	t.Run("should deliver typed payloads and skip mismatched ones", func(t *testing.T) {
		// given
		bus := NewEventBus()
		var received []EventRolledBack
		SubscribeTyped(bus, EventRolledBackType, func(e EventT[EventRolledBack]) error {
			received = append(received, e.Data)
			return nil
		})
		payload := EventRolledBack{EventId: uuid.New(), Version: 4, TargetVersion: 1, ActorId: 7}

		// when
		require.NoError(t, bus.Publish(NewEvent(ctx, EventRolledBackType, payload)))
		require.NoError(t, bus.Publish(NewEvent(ctx, EventRolledBackType, "not a payload")))
		require.NoError(t, bus.Publish(NewEvent(ctx, EventRolledBackType, nil)))

		// then
		assert.Equal(t, []EventRolledBack{payload}, received)
	})

	t.Run("should stop calling unsubscribed handlers", func(t *testing.T) {
		bus := NewEventBus()
		calls := 0
		unsubscribe := bus.Subscribe(PermissionChangedType, func(Event) error {
			calls++
			return nil
		})

		require.NoError(t, bus.Publish(NewEvent(ctx, PermissionChangedType, PermissionChanged{})))
		unsubscribe()
		require.NoError(t, bus.Publish(NewEvent(ctx, PermissionChangedType, PermissionChanged{})))

		assert.Equal(t, 1, calls)
	})

	t.Run("should refuse cancelled context", func(t *testing.T) {
		bus := NewEventBus()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := bus.Publish(NewEvent(cancelled, EventUpdatedType, EventUpdated{}))

		assert.ErrorIs(t, err, context.Canceled)
	})
}
