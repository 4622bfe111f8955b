package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/klokku/sharecal/pkg/recurrence"
	log "github.com/sirupsen/logrus"
)

type Query struct {
	Offset int
	Limit  int // 0 means no limit
}

// Repository reads the live event rows. Writes go through the version store, which
// keeps them in step with the version ledger.
type Repository interface {
	// FindEvent returns the event including tombstoned ones.
	FindEvent(ctx context.Context, id uuid.UUID) (Event, error)
	FindOwner(ctx context.Context, id uuid.UUID) (int, error)
	// ListAccessible returns the live events owned by or shared with userId, ordered by
	// start.
	ListAccessible(ctx context.Context, userId int, q Query) ([]Event, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const selectEventColumns = `SELECT e.id, e.owner_id, e.title, e.description, e.start_time, e.end_time, e.time_zone,
       e.recurrence, e.deleted, e.current_version, e.created_at, e.updated_at FROM events e`

func (r *RepositoryImpl) FindEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	row := r.db.QueryRow(ctx, selectEventColumns+` WHERE e.id = $1`, id)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		err = fmt.Errorf("could not find event: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return event, nil
}

func (r *RepositoryImpl) FindOwner(ctx context.Context, id uuid.UUID) (int, error) {
	var ownerId int
	err := r.db.QueryRow(ctx, `SELECT owner_id FROM events WHERE id = $1`, id).Scan(&ownerId)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		err = fmt.Errorf("could not find event owner: %w", err)
		log.Error(err)
		return 0, err
	}
	return ownerId, nil
}

func (r *RepositoryImpl) ListAccessible(ctx context.Context, userId int, q Query) ([]Event, error) {
	query := selectEventColumns + `
		WHERE e.deleted = FALSE
		  AND (e.owner_id = $1 OR EXISTS (SELECT 1 FROM event_permissions p WHERE p.event_id = e.id AND p.user_id = $1))
		ORDER BY e.start_time, e.id
		OFFSET $2`
	args := []any{userId, q.Offset}
	if q.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, q.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err = fmt.Errorf("could not list events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			err = fmt.Errorf("error scanning event: %w", err)
			log.Error(err)
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over events: %v", err)
		return nil, err
	}
	return events, nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		e    Event
		rule []byte
	)
	err := row.Scan(&e.Id, &e.OwnerId, &e.Title, &e.Description, &e.Start, &e.End, &e.TimeZone,
		&rule, &e.Deleted, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Event{}, err
	}
	if rule != nil {
		e.Recurrence = &recurrence.Rule{}
		if err := json.Unmarshal(rule, e.Recurrence); err != nil {
			return Event{}, fmt.Errorf("invalid recurrence of event %s: %w", e.Id, err)
		}
	}
	e.Start = utils.InZone(e.Start, e.TimeZone)
	e.End = utils.InZone(e.End, e.TimeZone)
	return e, nil
}
