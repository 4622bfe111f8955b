package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errEventMissing = errors.New("event missing")

type ownersStub map[uuid.UUID]int

func (o ownersStub) FindOwner(_ context.Context, eventId uuid.UUID) (int, error) {
	owner, ok := o[eventId]
	if !ok {
		return 0, errEventMissing
	}
	return owner, nil
}

const (
	ownerId    = 1
	aliceId    = 2
	bobId      = 3
	strangerId = 4
)

var grantTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Resolver, *RepositoryStub, uuid.UUID) {
	t.Helper()
	repo := NewRepositoryStub()
	eventId := uuid.New()
	clock := &utils.MockClock{FixedNow: grantTime}
	return NewResolver(repo, ownersStub{eventId: ownerId}, clock), repo, eventId
}

func TestResolver_Resolve(t *testing.T) {
	t.Run("should resolve owner regardless of stored grants", func(t *testing.T) {
		// given
		resolver, repo, eventId := setup(t)
		require.NoError(t, repo.Upsert(context.Background(), Permission{EventId: eventId, UserId: ownerId, Role: Viewer}))

		// when
		role, err := resolver.Resolve(context.Background(), ownerId, eventId)

		// then
		require.NoError(t, err)
		assert.Equal(t, Owner, role)
	})

	t.Run("should resolve stored grant", func(t *testing.T) {
		resolver, repo, eventId := setup(t)
		require.NoError(t, repo.Upsert(context.Background(), Permission{EventId: eventId, UserId: aliceId, Role: Editor}))

		role, err := resolver.Resolve(context.Background(), aliceId, eventId)

		require.NoError(t, err)
		assert.Equal(t, Editor, role)
	})

	t.Run("should resolve none without grant", func(t *testing.T) {
		resolver, _, eventId := setup(t)

		role, err := resolver.Resolve(context.Background(), strangerId, eventId)

		require.NoError(t, err)
		assert.Equal(t, None, role)
	})

	t.Run("should propagate missing event", func(t *testing.T) {
		resolver, _, _ := setup(t)

		_, err := resolver.Resolve(context.Background(), ownerId, uuid.New())

		assert.ErrorIs(t, err, errEventMissing)
	})

	t.Run("should memoize roles within a request", func(t *testing.T) {
		// given
		resolver, repo, eventId := setup(t)
		ctx := WithRoleCache(context.Background())
		require.NoError(t, repo.Upsert(ctx, Permission{EventId: eventId, UserId: aliceId, Role: Viewer}))

		// when
		_, err := resolver.Resolve(ctx, aliceId, eventId)
		require.NoError(t, err)
		role, err := resolver.Resolve(ctx, aliceId, eventId)

		// then
		require.NoError(t, err)
		assert.Equal(t, Viewer, role)
		assert.Equal(t, 1, repo.Finds)
	})

	t.Run("should not share roles between requests", func(t *testing.T) {
		resolver, repo, eventId := setup(t)

		_, err := resolver.Resolve(WithRoleCache(context.Background()), aliceId, eventId)
		require.NoError(t, err)
		_, err = resolver.Resolve(WithRoleCache(context.Background()), aliceId, eventId)
		require.NoError(t, err)

		assert.Equal(t, 2, repo.Finds)
	})
}

func TestResolver_Authorize(t *testing.T) {
	resolver, repo, eventId := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, Permission{EventId: eventId, UserId: aliceId, Role: Viewer}))

	assert.NoError(t, resolver.Authorize(ctx, aliceId, eventId, Viewer))
	assert.ErrorIs(t, resolver.Authorize(ctx, aliceId, eventId, Editor), ErrAccessDenied)
	assert.ErrorIs(t, resolver.Authorize(ctx, strangerId, eventId, Viewer), ErrAccessDenied)
	assert.NoError(t, resolver.Authorize(ctx, ownerId, eventId, Owner))
}

func TestResolver_Grant(t *testing.T) {
	t.Run("should overwrite previous grant", func(t *testing.T) {
		// given
		resolver, repo, eventId := setup(t)
		ctx := context.Background()
		_, err := resolver.Grant(ctx, ownerId, eventId, aliceId, Editor)
		require.NoError(t, err)

		// when
		granted, err := resolver.Grant(ctx, ownerId, eventId, aliceId, Viewer)

		// then
		require.NoError(t, err)
		assert.Equal(t, Viewer, granted.Role)
		assert.Equal(t, ownerId, granted.GrantedBy)
		assert.Equal(t, grantTime, granted.GrantedAt)
		stored, err := repo.ListForEvent(ctx, eventId)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, Viewer, stored[0].Role)
	})

	t.Run("should reject grant to the owner", func(t *testing.T) {
		resolver, repo, eventId := setup(t)

		_, err := resolver.Grant(context.Background(), ownerId, eventId, ownerId, Editor)

		assert.ErrorIs(t, err, ErrInvalidGrant)
		stored, _ := repo.ListForEvent(context.Background(), eventId)
		assert.Empty(t, stored)
	})

	t.Run("should reject owner role", func(t *testing.T) {
		resolver, _, eventId := setup(t)

		_, err := resolver.Grant(context.Background(), ownerId, eventId, aliceId, Owner)

		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("should allow only the owner to grant", func(t *testing.T) {
		resolver, _, eventId := setup(t)
		ctx := context.Background()
		_, err := resolver.Grant(ctx, ownerId, eventId, aliceId, Editor)
		require.NoError(t, err)

		_, err = resolver.Grant(ctx, aliceId, eventId, bobId, Viewer)

		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("should invalidate cached role of the grantee", func(t *testing.T) {
		// given
		resolver, _, eventId := setup(t)
		ctx := WithRoleCache(context.Background())
		role, err := resolver.Resolve(ctx, aliceId, eventId)
		require.NoError(t, err)
		require.Equal(t, None, role)

		// when
		_, err = resolver.Grant(ctx, ownerId, eventId, aliceId, Editor)
		require.NoError(t, err)

		// then
		role, err = resolver.Resolve(ctx, aliceId, eventId)
		require.NoError(t, err)
		assert.Equal(t, Editor, role)
	})
}

func TestResolver_Revoke(t *testing.T) {
	t.Run("should remove grant and invalidate cache", func(t *testing.T) {
		// given
		resolver, _, eventId := setup(t)
		ctx := WithRoleCache(context.Background())
		_, err := resolver.Grant(ctx, ownerId, eventId, aliceId, Editor)
		require.NoError(t, err)
		require.NoError(t, resolver.Authorize(ctx, aliceId, eventId, Editor))

		// when
		err = resolver.Revoke(ctx, ownerId, eventId, aliceId)

		// then
		require.NoError(t, err)
		assert.ErrorIs(t, resolver.Authorize(ctx, aliceId, eventId, Viewer), ErrAccessDenied)
	})

	t.Run("should report missing grant", func(t *testing.T) {
		resolver, _, eventId := setup(t)

		err := resolver.Revoke(context.Background(), ownerId, eventId, aliceId)

		assert.ErrorIs(t, err, ErrPermissionNotFound)
	})

	t.Run("should allow only the owner to revoke", func(t *testing.T) {
		resolver, _, eventId := setup(t)
		ctx := context.Background()
		_, err := resolver.Grant(ctx, ownerId, eventId, aliceId, Editor)
		require.NoError(t, err)
		_, err = resolver.Grant(ctx, ownerId, eventId, bobId, Viewer)
		require.NoError(t, err)

		err = resolver.Revoke(ctx, aliceId, eventId, bobId)

		assert.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestResolver_List(t *testing.T) {
	t.Run("should list owner first", func(t *testing.T) {
		// given
		resolver, _, eventId := setup(t)
		ctx := context.Background()
		_, err := resolver.Grant(ctx, ownerId, eventId, bobId, Viewer)
		require.NoError(t, err)

		// when
		permissions, err := resolver.List(ctx, bobId, eventId)

		// then
		require.NoError(t, err)
		require.Len(t, permissions, 2)
		assert.Equal(t, ownerId, permissions[0].UserId)
		assert.Equal(t, Owner, permissions[0].Role)
		assert.Equal(t, bobId, permissions[1].UserId)
		assert.Equal(t, Viewer, permissions[1].Role)
	})

	t.Run("should deny strangers", func(t *testing.T) {
		resolver, _, eventId := setup(t)

		_, err := resolver.List(context.Background(), strangerId, eventId)

		assert.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("Editor")
	require.NoError(t, err)
	assert.Equal(t, Editor, role)

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	assert.True(t, Owner.AtLeast(Editor))
	assert.False(t, Viewer.AtLeast(Editor))
}
