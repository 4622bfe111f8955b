package version

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/internal/rest"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/klokku/sharecal/pkg/permission"
	"github.com/klokku/sharecal/pkg/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerId  = 1
	editorId = 2
	viewerId = 3
)

type ledgerOwners struct {
	repo *RepositoryStub
}

func (o ledgerOwners) FindOwner(_ context.Context, eventId uuid.UUID) (int, error) {
	latest, ok := o.repo.Latest(eventId)
	if !ok {
		return 0, ErrEventNotFound
	}
	return latest.Snapshot.OwnerId, nil
}

type fixture struct {
	ctx         context.Context
	store       *Store
	repo        *RepositoryStub
	permissions *permission.RepositoryStub
	clock       *utils.MockClock
}

func setup(t *testing.T) fixture {
	t.Helper()
	repo := NewRepositoryStub()
	permissions := permission.NewRepositoryStub()
	clock := &utils.MockClock{FixedNow: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	resolver := permission.NewResolver(permissions, ledgerOwners{repo: repo}, clock)
	return fixture{
		ctx:         context.Background(),
		store:       NewStore(repo, resolver, clock),
		repo:        repo,
		permissions: permissions,
		clock:       clock,
	}
}

func snapshot(title string) Snapshot {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return Snapshot{
		Title:    title,
		Start:    start,
		End:      start.Add(time.Hour),
		TimeZone: "UTC",
		OwnerId:  ownerId,
	}
}

// createShared records version 1 and grants editor and viewer roles.
func (f fixture) createShared(t *testing.T) uuid.UUID {
	t.Helper()
	eventId := uuid.New()
	_, err := f.store.Record(f.ctx, eventId, 0, snapshot("Planning"), ownerId, "created")
	require.NoError(t, err)
	require.NoError(t, f.permissions.Upsert(f.ctx, permission.Permission{EventId: eventId, UserId: editorId, Role: permission.Editor}))
	require.NoError(t, f.permissions.Upsert(f.ctx, permission.Permission{EventId: eventId, UserId: viewerId, Role: permission.Viewer}))
	return eventId
}

func TestStore_Record(t *testing.T) {
	t.Run("should create version 1 for the owner", func(t *testing.T) {
		// given
		f := setup(t)
		eventId := uuid.New()

		// when
		v, err := f.store.Record(f.ctx, eventId, 0, snapshot("Planning"), ownerId, "created")

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, v.Number)
		assert.Equal(t, f.clock.Now(), v.CreatedAt)
		stored, err := f.store.Get(f.ctx, eventId, 1)
		require.NoError(t, err)
		assert.Equal(t, "Planning", stored.Snapshot.Title)
	})

	t.Run("should not create event for someone else", func(t *testing.T) {
		f := setup(t)

		_, err := f.store.Record(f.ctx, uuid.New(), 0, snapshot("Planning"), editorId, "created")

		assert.ErrorIs(t, err, permission.ErrAccessDenied)
	})

	t.Run("should append for editor and deny viewer", func(t *testing.T) {
		// given
		f := setup(t)
		eventId := f.createShared(t)

		// when
		v, err := f.store.Record(f.ctx, eventId, 1, snapshot("Edited"), editorId, "")
		_, viewerErr := f.store.Record(f.ctx, eventId, 2, snapshot("Viewer edit"), viewerId, "")

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, v.Number)
		assert.ErrorIs(t, viewerErr, permission.ErrAccessDenied)
		_, err = f.store.Get(f.ctx, eventId, 3)
		assert.ErrorIs(t, err, ErrVersionNotFound)
	})

	t.Run("should reject stale expected version", func(t *testing.T) {
		f := setup(t)
		eventId := f.createShared(t)
		_, err := f.store.Record(f.ctx, eventId, 1, snapshot("First"), editorId, "")
		require.NoError(t, err)

		_, err = f.store.Record(f.ctx, eventId, 1, snapshot("Second"), ownerId, "")

		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("should let exactly one of two concurrent writers win", func(t *testing.T) {
		// given
		f := setup(t)
		eventId := f.createShared(t)
		var wg sync.WaitGroup
		errs := make([]error, 2)
		writers := []int{ownerId, editorId}

		// when
		for i, author := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = f.store.Record(f.ctx, eventId, 1, snapshot("Concurrent"), author, "")
			}()
		}
		wg.Wait()

		// then
		succeeded, conflicted := 0, 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, ErrConcurrentModification) {
				conflicted++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, conflicted)
		history, err := f.store.History(f.ctx, eventId)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("should report unknown event", func(t *testing.T) {
		f := setup(t)

		_, err := f.store.Record(f.ctx, uuid.New(), 3, snapshot("Ghost"), ownerId, "")

		assert.ErrorIs(t, err, ErrEventNotFound)
	})
}

func TestStore_Diff(t *testing.T) {
	t.Run("should be empty for the same version", func(t *testing.T) {
		f := setup(t)
		eventId := f.createShared(t)

		changes, err := f.store.Diff(f.ctx, eventId, 1, 1)

		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("should list changed fields only", func(t *testing.T) {
		// given
		f := setup(t)
		eventId := f.createShared(t)
		changed := snapshot("Retro")
		changed.End = changed.End.Add(30 * time.Minute)
		changed.Recurrence = &recurrence.Rule{Frequency: recurrence.Weekly, Interval: 1}
		_, err := f.store.Record(f.ctx, eventId, 1, changed, editorId, "")
		require.NoError(t, err)

		// when
		changes, err := f.store.Diff(f.ctx, eventId, 1, 2)

		// then
		require.NoError(t, err)
		require.Len(t, changes, 3)
		assert.Equal(t, FieldChange{Field: "title", OldValue: "Planning", NewValue: "Retro"}, changes[0])
		assert.Equal(t, "end", changes[1].Field)
		assert.Equal(t, "recurrence", changes[2].Field)
		assert.Nil(t, changes[2].OldValue)
	})

	t.Run("should compare instants regardless of zone", func(t *testing.T) {
		a := snapshot("Same")
		b := snapshot("Same")
		b.Start = b.Start.In(time.FixedZone("", 2*3600))

		assert.Empty(t, Compare(a, b))
	})

	t.Run("should report missing version", func(t *testing.T) {
		f := setup(t)
		eventId := f.createShared(t)

		_, err := f.store.Diff(f.ctx, eventId, 1, 7)

		assert.ErrorIs(t, err, ErrVersionNotFound)
	})
}

func TestStore_Rollback(t *testing.T) {
	// given
	f := setup(t)
	eventId := f.createShared(t)
	for i, title := range []string{"Second", "Third"} {
		_, err := f.store.Record(f.ctx, eventId, i+1, snapshot(title), editorId, "")
		require.NoError(t, err)
	}

	// when
	rolledBack, err := f.store.Rollback(f.ctx, eventId, 1, 3, editorId)

	// then
	require.NoError(t, err)
	assert.Equal(t, 4, rolledBack.Number)
	assert.Equal(t, "rolled back to version 1", rolledBack.Summary)
	changes, err := f.store.Diff(f.ctx, eventId, 4, 1)
	require.NoError(t, err)
	assert.Empty(t, changes)

	history, err := f.store.History(f.ctx, eventId)
	require.NoError(t, err)
	for i, entry := range history {
		assert.Equal(t, i+1, entry.Number)
	}

	t.Run("should fail for viewer", func(t *testing.T) {
		_, err := f.store.Rollback(f.ctx, eventId, 2, 4, viewerId)

		assert.ErrorIs(t, err, permission.ErrAccessDenied)
	})

	t.Run("should fail for missing target", func(t *testing.T) {
		_, err := f.store.Rollback(f.ctx, eventId, 9, 4, editorId)

		assert.ErrorIs(t, err, ErrVersionNotFound)
	})
}

func TestStore_Changelog(t *testing.T) {
	// given
	f := setup(t)
	eventId := f.createShared(t)
	for i, title := range []string{"Two", "Three", "Four"} {
		f.clock.Advance(time.Minute)
		_, err := f.store.Record(f.ctx, eventId, i+1, snapshot(title), ownerId, "renamed")
		require.NoError(t, err)
	}

	// when
	firstPage, err := f.store.Changelog(f.ctx, eventId, rest.Page{Page: 1, PerPage: 2})
	require.NoError(t, err)
	secondPage, err := f.store.Changelog(f.ctx, eventId, rest.Page{Page: 2, PerPage: 2})
	require.NoError(t, err)

	// then
	require.Len(t, firstPage, 2)
	assert.Equal(t, 4, firstPage[0].Number)
	assert.Equal(t, 3, firstPage[1].Number)
	assert.Equal(t, []FieldChange{{Field: "title", OldValue: "Two", NewValue: "Three"}}, firstPage[1].Changes)

	require.Len(t, secondPage, 2)
	assert.Equal(t, 2, secondPage[0].Number)
	assert.Equal(t, []FieldChange{{Field: "title", OldValue: "Planning", NewValue: "Two"}}, secondPage[0].Changes)
	assert.Equal(t, 1, secondPage[1].Number)
	assert.Empty(t, secondPage[1].Changes)
}

func TestStore_At(t *testing.T) {
	// given
	f := setup(t)
	created := f.clock.Now()
	eventId := f.createShared(t)
	f.clock.Advance(time.Hour)
	_, err := f.store.Record(f.ctx, eventId, 1, snapshot("Later"), ownerId, "")
	require.NoError(t, err)

	// when
	atCreation, err := f.store.At(f.ctx, eventId, created.Add(time.Minute))
	require.NoError(t, err)
	now, err := f.store.At(f.ctx, eventId, f.clock.Now())
	require.NoError(t, err)
	_, beforeErr := f.store.At(f.ctx, eventId, created.Add(-time.Minute))

	// then
	assert.Equal(t, 1, atCreation.Number)
	assert.Equal(t, 2, now.Number)
	assert.ErrorIs(t, beforeErr, ErrVersionNotFound)
}
