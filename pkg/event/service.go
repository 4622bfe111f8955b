package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/sharecal/internal/event_bus"
	"github.com/klokku/sharecal/internal/rest"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/klokku/sharecal/pkg/conflict"
	"github.com/klokku/sharecal/pkg/permission"
	"github.com/klokku/sharecal/pkg/user"
	"github.com/klokku/sharecal/pkg/version"
	log "github.com/sirupsen/logrus"
)

const DefaultMaxBatchSize = 100

type Service interface {
	Create(ctx context.Context, draft Draft) (Result, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Result, error)
	Delete(ctx context.Context, id uuid.UUID, expectedVersion int) error
	BatchCreate(ctx context.Context, drafts []Draft) ([]BatchItem, error)
	Rollback(ctx context.Context, id uuid.UUID, target int, expectedVersion int) (Event, error)

	Share(ctx context.Context, id uuid.UUID, granteeId int, role permission.Role) (permission.Permission, error)
	Revoke(ctx context.Context, id uuid.UUID, granteeId int) error
	ListPermissions(ctx context.Context, id uuid.UUID) ([]permission.Permission, error)

	Get(ctx context.Context, id uuid.UUID) (Event, error)
	List(ctx context.Context, page rest.Page) ([]Event, error)
	History(ctx context.Context, id uuid.UUID) ([]version.Entry, error)
	Version(ctx context.Context, id uuid.UUID, number int) (version.Version, error)
	Diff(ctx context.Context, id uuid.UUID, from, to int) ([]version.FieldChange, error)
	Changelog(ctx context.Context, id uuid.UUID, page rest.Page) ([]version.Entry, error)
	VersionAt(ctx context.Context, id uuid.UUID, at time.Time) (version.Version, error)
	CheckConflicts(ctx context.Context, draft Draft, excludeId uuid.UUID) ([]conflict.Conflict, error)
	ExportICS(ctx context.Context, id uuid.UUID) (string, error)
}

type Permissions interface {
	Authorize(ctx context.Context, userId int, eventId uuid.UUID, required permission.Role) error
	Grant(ctx context.Context, callerId int, eventId uuid.UUID, granteeId int, role permission.Role) (permission.Permission, error)
	Revoke(ctx context.Context, callerId int, eventId uuid.UUID, granteeId int) error
	List(ctx context.Context, callerId int, eventId uuid.UUID) ([]permission.Permission, error)
}

type ConflictFinder interface {
	FindConflicts(ctx context.Context, userId int, candidate conflict.Schedule, excludeEventId uuid.UUID) ([]conflict.Conflict, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id int) (user.User, error)
}

type ServiceImpl struct {
	repo        Repository
	store       *version.Store
	permissions Permissions
	conflicts   ConflictFinder
	users       UserLookup
	eventBus    *event_bus.EventBus
	clock       utils.Clock
	maxBatch    int
}

func NewService(
	repo Repository,
	store *version.Store,
	permissions Permissions,
	conflicts ConflictFinder,
	users UserLookup,
	eventBus *event_bus.EventBus,
	clock utils.Clock,
	maxBatch int,
) *ServiceImpl {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &ServiceImpl{
		repo:        repo,
		store:       store,
		permissions: permissions,
		conflicts:   conflicts,
		users:       users,
		eventBus:    eventBus,
		clock:       clock,
		maxBatch:    maxBatch,
	}
}

// Create records version 1 of a new event owned by the current user. Conflicts with
// the user's other events are reported as warnings.
func (s *ServiceImpl) Create(ctx context.Context, draft Draft) (Result, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Result{}, err
	}
	e, err := normalize(Event{
		OwnerId:     userId,
		Title:       draft.Title,
		Description: draft.Description,
		Start:       draft.Start,
		End:         draft.End,
		TimeZone:    draft.TimeZone,
		Recurrence:  draft.Recurrence,
	})
	if err != nil {
		return Result{}, err
	}
	warnings := s.findConflicts(ctx, userId, e, uuid.Nil)

	e.Id = uuid.New()
	v, err := s.store.Record(ctx, e.Id, 0, e.Snapshot(), userId, "created")
	if err != nil {
		return Result{}, err
	}
	created := fromVersion(v, v.CreatedAt)
	log.Debugf("user %d created event %s", userId, created.Id)

	s.publish(ctx, event_bus.EventCreatedType, event_bus.EventCreated{
		EventId: created.Id,
		Version: created.Version,
		ActorId: userId,
		Title:   created.Title,
		Start:   created.Start,
		End:     created.End,
	})
	return Result{Event: created, Warnings: warnings}, nil
}

// Update applies a partial update on top of the latest version. The write fails with
// version.ErrConcurrentModification when the event moved past the expected version.
func (s *ServiceImpl) Update(ctx context.Context, id uuid.UUID, patch Patch) (Result, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Result{}, err
	}
	current, err := s.live(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if err := s.permissions.Authorize(ctx, userId, id, permission.Editor); err != nil {
		return Result{}, err
	}
	expected, err := checkExpected(current, patch.ExpectedVersion)
	if err != nil {
		return Result{}, err
	}

	updated, err := normalize(patch.apply(current))
	if err != nil {
		return Result{}, err
	}
	changes := version.Compare(current.Snapshot(), updated.Snapshot())
	warnings := s.findConflicts(ctx, userId, updated, id)

	v, err := s.store.Record(ctx, id, expected, updated.Snapshot(), userId, updateSummary(changes))
	if err != nil {
		return Result{}, err
	}
	result := fromVersion(v, current.CreatedAt)
	log.Debugf("user %d updated event %s to version %d", userId, id, v.Number)

	s.publish(ctx, event_bus.EventUpdatedType, event_bus.EventUpdated{
		EventId: id,
		Version: v.Number,
		ActorId: userId,
		Fields:  fieldNames(changes),
	})
	return Result{Event: result, Warnings: warnings}, nil
}

// Delete records a tombstone version. Only the owner may delete.
func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID, expectedVersion int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return err
	}
	current, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	if err := s.permissions.Authorize(ctx, userId, id, permission.Owner); err != nil {
		return err
	}
	expected, err := checkExpected(current, expectedVersion)
	if err != nil {
		return err
	}

	tombstone := current
	tombstone.Deleted = true
	v, err := s.store.Record(ctx, id, expected, tombstone.Snapshot(), userId, "deleted")
	if err != nil {
		return err
	}
	log.Debugf("user %d deleted event %s at version %d", userId, id, v.Number)

	s.publish(ctx, event_bus.EventDeletedType, event_bus.EventDeleted{
		EventId: id,
		Version: v.Number,
		ActorId: userId,
	})
	return nil
}

// BatchCreate creates every draft independently. A failing item is reported in its
// BatchItem and does not affect the others.
func (s *ServiceImpl) BatchCreate(ctx context.Context, drafts []Draft) ([]BatchItem, error) {
	if _, err := user.CurrentId(ctx); err != nil {
		return nil, err
	}
	if len(drafts) > s.maxBatch {
		return nil, fmt.Errorf("%w: batch of %d events exceeds the limit of %d", ErrValidation, len(drafts), s.maxBatch)
	}

	items := make([]BatchItem, 0, len(drafts))
	failed := 0
	for i, draft := range drafts {
		item := BatchItem{Index: i}
		result, err := s.Create(ctx, draft)
		if err != nil {
			failed++
			item.Err = err
		} else {
			item.Event = &result.Event
			item.Warnings = result.Warnings
		}
		items = append(items, item)
	}
	log.Debugf("batch create finished: %d created, %d failed", len(drafts)-failed, failed)
	return items, nil
}

// Rollback appends a version equal to the target version. Tombstoned events can be
// rolled back, which restores them. Crossing between deleted and live needs the owner.
func (s *ServiceImpl) Rollback(ctx context.Context, id uuid.UUID, target int, expectedVersion int) (Event, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Event{}, err
	}
	current, err := s.repo.FindEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if err := s.permissions.Authorize(ctx, userId, id, permission.Editor); err != nil {
		return Event{}, err
	}
	expected, err := checkExpected(current, expectedVersion)
	if err != nil {
		return Event{}, err
	}
	targetVersion, err := s.store.Get(ctx, id, target)
	if err != nil {
		return Event{}, err
	}
	// deleting or restoring through a rollback needs the same role as Delete
	if targetVersion.Snapshot.Deleted != current.Deleted {
		if err := s.permissions.Authorize(ctx, userId, id, permission.Owner); err != nil {
			return Event{}, err
		}
	}

	v, err := s.store.Rollback(ctx, id, target, expected, userId)
	if err != nil {
		return Event{}, err
	}
	log.Debugf("user %d rolled back event %s to version %d", userId, id, target)

	s.publish(ctx, event_bus.EventRolledBackType, event_bus.EventRolledBack{
		EventId:       id,
		Version:       v.Number,
		TargetVersion: target,
		ActorId:       userId,
	})
	return fromVersion(v, current.CreatedAt), nil
}

func (s *ServiceImpl) Share(ctx context.Context, id uuid.UUID, granteeId int, role permission.Role) (permission.Permission, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return permission.Permission{}, err
	}
	if _, err := s.live(ctx, id); err != nil {
		return permission.Permission{}, err
	}
	if _, err := s.users.GetUser(ctx, granteeId); err != nil {
		return permission.Permission{}, err
	}
	p, err := s.permissions.Grant(ctx, userId, id, granteeId, role)
	if err != nil {
		return permission.Permission{}, err
	}

	s.publish(ctx, event_bus.PermissionChangedType, event_bus.PermissionChanged{
		EventId: id,
		UserId:  granteeId,
		Role:    role.String(),
		ActorId: userId,
	})
	return p, nil
}

func (s *ServiceImpl) Revoke(ctx context.Context, id uuid.UUID, granteeId int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return err
	}
	if err := s.permissions.Revoke(ctx, userId, id, granteeId); err != nil {
		return err
	}

	s.publish(ctx, event_bus.PermissionChangedType, event_bus.PermissionChanged{
		EventId: id,
		UserId:  granteeId,
		ActorId: userId,
	})
	return nil
}

func (s *ServiceImpl) ListPermissions(ctx context.Context, id uuid.UUID) ([]permission.Permission, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, err
	}
	return s.permissions.List(ctx, userId, id)
}

func (s *ServiceImpl) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Event{}, err
	}
	e, err := s.repo.FindEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if err := s.permissions.Authorize(ctx, userId, id, permission.Viewer); err != nil {
		return Event{}, err
	}
	if e.Deleted {
		return Event{}, fmt.Errorf("%w: %s was deleted", ErrEventNotFound, id)
	}
	return e, nil
}

func (s *ServiceImpl) List(ctx context.Context, page rest.Page) ([]Event, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAccessible(ctx, userId, Query{Offset: page.Offset(), Limit: page.PerPage})
}

func (s *ServiceImpl) History(ctx context.Context, id uuid.UUID) ([]version.Entry, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

func (s *ServiceImpl) Version(ctx context.Context, id uuid.UUID, number int) (version.Version, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return version.Version{}, err
	}
	return s.store.Get(ctx, id, number)
}

func (s *ServiceImpl) Diff(ctx context.Context, id uuid.UUID, from, to int) ([]version.FieldChange, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Diff(ctx, id, from, to)
}

func (s *ServiceImpl) Changelog(ctx context.Context, id uuid.UUID, page rest.Page) ([]version.Entry, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Changelog(ctx, id, page)
}

func (s *ServiceImpl) VersionAt(ctx context.Context, id uuid.UUID, at time.Time) (version.Version, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return version.Version{}, err
	}
	return s.store.At(ctx, id, at)
}

// CheckConflicts runs conflict detection for a prospective event without writing it.
func (s *ServiceImpl) CheckConflicts(ctx context.Context, draft Draft, excludeId uuid.UUID) ([]conflict.Conflict, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, err
	}
	e, err := normalizeSchedule(Event{
		Title:      draft.Title,
		Start:      draft.Start,
		End:        draft.End,
		TimeZone:   draft.TimeZone,
		Recurrence: draft.Recurrence,
	})
	if err != nil {
		return nil, err
	}
	return s.conflicts.FindConflicts(ctx, userId, e.schedule(), excludeId)
}

func (s *ServiceImpl) ExportICS(ctx context.Context, id uuid.UUID) (string, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return renderICS(e, s.clock.Now()), nil
}

func (s *ServiceImpl) authorizeRead(ctx context.Context, id uuid.UUID) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return err
	}
	return s.permissions.Authorize(ctx, userId, id, permission.Viewer)
}

// live returns the event unless it is missing or tombstoned.
func (s *ServiceImpl) live(ctx context.Context, id uuid.UUID) (Event, error) {
	e, err := s.repo.FindEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if e.Deleted {
		return Event{}, fmt.Errorf("%w: %s was deleted", ErrEventNotFound, id)
	}
	return e, nil
}

func (s *ServiceImpl) findConflicts(ctx context.Context, userId int, e Event, excludeId uuid.UUID) []conflict.Conflict {
	conflicts, err := s.conflicts.FindConflicts(ctx, userId, e.schedule(), excludeId)
	if err != nil {
		log.Warnf("conflict check for user %d failed: %v", userId, err)
		return []conflict.Conflict{}
	}
	return conflicts
}

// publish runs after the version is committed, so a cancelled request must not
// suppress the notification.
func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, payload any) {
	if s.eventBus == nil {
		return
	}
	err := s.eventBus.Publish(event_bus.NewEvent(context.WithoutCancel(ctx), eventType, payload))
	if err != nil {
		log.Errorf("failed to publish %s: %v", eventType, err)
	}
}

// checkExpected fails early when the caller read an older version than the current one.
func checkExpected(current Event, requested int) (int, error) {
	if requested != 0 && requested != current.Version {
		return 0, fmt.Errorf("%w: event %s is at version %d, expected %d",
			version.ErrConcurrentModification, current.Id, current.Version, requested)
	}
	return current.Version, nil
}

func fieldNames(changes []version.FieldChange) []string {
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		names = append(names, c.Field)
	}
	return names
}

func updateSummary(changes []version.FieldChange) string {
	if len(changes) == 0 {
		return "no changes"
	}
	return "updated " + strings.Join(fieldNames(changes), ", ")
}
