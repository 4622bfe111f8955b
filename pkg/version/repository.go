package version

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Query struct {
	Offset      int
	Limit       int // 0 means no limit
	NewestFirst bool
}

type Repository interface {
	// Append stores v as the next version of its event, provided the event is still at
	// version expected. The live event row is written in the same transaction.
	Append(ctx context.Context, v Version, expected int) error
	Get(ctx context.Context, eventId uuid.UUID, number int) (Version, error)
	List(ctx context.Context, eventId uuid.UUID, q Query) ([]Version, error)
	LatestAt(ctx context.Context, eventId uuid.UUID, at time.Time) (Version, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	insertVersionStatement = `INSERT INTO event_versions (event_id, version, snapshot, author_id, summary, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	selectVersionColumns   = `SELECT event_id, version, snapshot, author_id, summary, created_at FROM event_versions`
	eventExistsStatement   = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`
)

func (r *RepositoryImpl) Append(ctx context.Context, v Version, expected int) error {
	snapshot, err := encodeSnapshot(v.Snapshot)
	if err != nil {
		return err
	}
	rule, err := encodeRule(v.Snapshot.Recurrence)
	if err != nil {
		return err
	}

	// The conditional UPDATE takes the row lock, so a second writer with the same
	// expected version re-reads the row after the first commits and matches nothing.
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	s := v.Snapshot
	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = tx.Exec(ctx, `INSERT INTO events (id, owner_id, title, description, start_time, end_time, time_zone,
                    recurrence, deleted, current_version, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
				ON CONFLICT (id) DO NOTHING`,
			v.EventId, s.OwnerId, s.Title, s.Description, s.Start, s.End, s.TimeZone, rule, s.Deleted, v.Number, v.CreatedAt)
	} else {
		tag, err = tx.Exec(ctx, `UPDATE events SET title = $2, description = $3, start_time = $4, end_time = $5,
                    time_zone = $6, recurrence = $7, deleted = $8, current_version = $9, updated_at = $10
				WHERE id = $1 AND current_version = $11`,
			v.EventId, s.Title, s.Description, s.Start, s.End, s.TimeZone, rule, s.Deleted, v.Number, v.CreatedAt, expected)
	}
	if err != nil {
		return writeError(err, v)
	}
	if tag.RowsAffected() == 0 {
		if expected == 0 {
			return fmt.Errorf("%w: event %s already exists", ErrConcurrentModification, v.EventId)
		}
		var exists bool
		if err := tx.QueryRow(ctx, eventExistsStatement, v.EventId).Scan(&exists); err != nil {
			return writeError(err, v)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrEventNotFound, v.EventId)
		}
		return fmt.Errorf("%w: event %s is no longer at version %d", ErrConcurrentModification, v.EventId, expected)
	}

	_, err = tx.Exec(ctx, insertVersionStatement, v.EventId, v.Number, snapshot, v.AuthorId, v.Summary, v.CreatedAt)
	if err != nil {
		return writeError(err, v)
	}
	if err := tx.Commit(ctx); err != nil {
		return writeError(err, v)
	}
	return nil
}

func writeError(err error, v Version) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: version %d of event %s: %v", ErrConcurrentModification, v.Number, v.EventId, pgErr.Message)
		}
	}
	err = fmt.Errorf("could not append version %d of event %s: %w", v.Number, v.EventId, err)
	log.Error(err)
	return err
}

func (r *RepositoryImpl) Get(ctx context.Context, eventId uuid.UUID, number int) (Version, error) {
	row := r.db.QueryRow(ctx, selectVersionColumns+` WHERE event_id = $1 AND version = $2`, eventId, number)
	v, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, r.notFound(ctx, eventId, fmt.Sprintf("version %d of event %s", number, eventId))
	}
	if err != nil {
		err = fmt.Errorf("could not get version: %w", err)
		log.Error(err)
		return Version{}, err
	}
	return v, nil
}

func (r *RepositoryImpl) List(ctx context.Context, eventId uuid.UUID, q Query) ([]Version, error) {
	order := "ASC"
	if q.NewestFirst {
		order = "DESC"
	}
	query := selectVersionColumns + ` WHERE event_id = $1 ORDER BY version ` + order + ` OFFSET $2`
	args := []any{eventId, q.Offset}
	if q.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, q.Limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err = fmt.Errorf("could not list versions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	versions := make([]Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			err = fmt.Errorf("error scanning version: %w", err)
			log.Error(err)
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over versions: %v", err)
		return nil, err
	}
	return versions, nil
}

func (r *RepositoryImpl) LatestAt(ctx context.Context, eventId uuid.UUID, at time.Time) (Version, error) {
	row := r.db.QueryRow(ctx, selectVersionColumns+` WHERE event_id = $1 AND created_at <= $2 ORDER BY version DESC LIMIT 1`, eventId, at)
	v, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, r.notFound(ctx, eventId, fmt.Sprintf("event %s at %s", eventId, at.Format(time.RFC3339)))
	}
	if err != nil {
		err = fmt.Errorf("could not get version at %s: %w", at, err)
		log.Error(err)
		return Version{}, err
	}
	return v, nil
}

func (r *RepositoryImpl) notFound(ctx context.Context, eventId uuid.UUID, what string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, eventExistsStatement, eventId).Scan(&exists); err != nil {
		log.Errorf("could not check event existence: %v", err)
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventId)
	}
	return fmt.Errorf("%w: %s", ErrVersionNotFound, what)
}

func scanVersion(row pgx.Row) (Version, error) {
	var (
		v        Version
		snapshot []byte
	)
	if err := row.Scan(&v.EventId, &v.Number, &snapshot, &v.AuthorId, &v.Summary, &v.CreatedAt); err != nil {
		return Version{}, err
	}
	s, err := decodeSnapshot(snapshot)
	if err != nil {
		return Version{}, err
	}
	v.Snapshot = s
	return v, nil
}
