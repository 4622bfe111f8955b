package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/internal/utils"
	log "github.com/sirupsen/logrus"
)

// OwnerLookup returns the owner of an event, or an error wrapping the caller's
// not-found sentinel when the event does not exist.
type OwnerLookup interface {
	FindOwner(ctx context.Context, eventId uuid.UUID) (int, error)
}

type Resolver struct {
	repo   Repository
	owners OwnerLookup
	clock  utils.Clock
}

func NewResolver(repo Repository, owners OwnerLookup, clock utils.Clock) *Resolver {
	return &Resolver{repo: repo, owners: owners, clock: clock}
}

// Resolve returns the effective role of userId on eventId. Ownership always wins over
// stored grants.
func (r *Resolver) Resolve(ctx context.Context, userId int, eventId uuid.UUID) (Role, error) {
	cache := cacheFrom(ctx)
	if role, ok := cache.get(eventId, userId); ok {
		return role, nil
	}

	ownerId, err := r.owners.FindOwner(ctx, eventId)
	if err != nil {
		return None, err
	}
	if ownerId == userId {
		cache.put(eventId, userId, Owner)
		return Owner, nil
	}

	p, err := r.repo.Find(ctx, eventId, userId)
	if errors.Is(err, ErrPermissionNotFound) {
		cache.put(eventId, userId, None)
		return None, nil
	}
	if err != nil {
		return None, err
	}
	cache.put(eventId, userId, p.Role)
	return p.Role, nil
}

func (r *Resolver) Authorize(ctx context.Context, userId int, eventId uuid.UUID, required Role) error {
	role, err := r.Resolve(ctx, userId, eventId)
	if err != nil {
		return err
	}
	if !role.AtLeast(required) {
		log.Debugf("user %d has role %s on event %s, %s required", userId, role, eventId, required)
		return fmt.Errorf("%w: %s role required on event %s", ErrAccessDenied, required, eventId)
	}
	return nil
}

// Grant creates or overwrites the grantee's role. Only the owner may grant, and only
// the editor and viewer roles can be granted.
func (r *Resolver) Grant(ctx context.Context, callerId int, eventId uuid.UUID, granteeId int, role Role) (Permission, error) {
	if err := r.Authorize(ctx, callerId, eventId, Owner); err != nil {
		return Permission{}, err
	}
	if role != Editor && role != Viewer {
		return Permission{}, fmt.Errorf("%w: role %s cannot be granted", ErrInvalidGrant, role)
	}
	ownerId, err := r.owners.FindOwner(ctx, eventId)
	if err != nil {
		return Permission{}, err
	}
	if granteeId == ownerId {
		return Permission{}, fmt.Errorf("%w: user %d already owns event %s", ErrInvalidGrant, granteeId, eventId)
	}

	p := Permission{
		EventId:   eventId,
		UserId:    granteeId,
		Role:      role,
		GrantedBy: callerId,
		GrantedAt: r.clock.Now(),
	}
	if err := r.repo.Upsert(ctx, p); err != nil {
		return Permission{}, err
	}
	cacheFrom(ctx).invalidate(eventId, granteeId)
	log.Debugf("user %d granted %s on event %s to user %d", callerId, role, eventId, granteeId)
	return p, nil
}

func (r *Resolver) Revoke(ctx context.Context, callerId int, eventId uuid.UUID, granteeId int) error {
	if err := r.Authorize(ctx, callerId, eventId, Owner); err != nil {
		return err
	}
	if granteeId == callerId {
		return fmt.Errorf("%w: the owner's access cannot be revoked", ErrInvalidGrant)
	}
	deleted, err := r.repo.Delete(ctx, eventId, granteeId)
	if err != nil {
		return err
	}
	cacheFrom(ctx).invalidate(eventId, granteeId)
	if !deleted {
		return fmt.Errorf("%w: user %d on event %s", ErrPermissionNotFound, granteeId, eventId)
	}
	log.Debugf("user %d revoked access of user %d to event %s", callerId, granteeId, eventId)
	return nil
}

// List returns the owner entry first, followed by stored grants. Any role may list.
func (r *Resolver) List(ctx context.Context, callerId int, eventId uuid.UUID) ([]Permission, error) {
	if err := r.Authorize(ctx, callerId, eventId, Viewer); err != nil {
		return nil, err
	}
	ownerId, err := r.owners.FindOwner(ctx, eventId)
	if err != nil {
		return nil, err
	}
	grants, err := r.repo.ListForEvent(ctx, eventId)
	if err != nil {
		return nil, err
	}
	result := make([]Permission, 0, len(grants)+1)
	result = append(result, Permission{EventId: eventId, UserId: ownerId, Role: Owner, GrantedBy: ownerId})
	return append(result, grants...), nil
}
