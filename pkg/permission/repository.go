package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	Find(ctx context.Context, eventId uuid.UUID, userId int) (Permission, error)
	Upsert(ctx context.Context, p Permission) error
	Delete(ctx context.Context, eventId uuid.UUID, userId int) (bool, error)
	ListForEvent(ctx context.Context, eventId uuid.UUID) ([]Permission, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Find(ctx context.Context, eventId uuid.UUID, userId int) (Permission, error) {
	query := `SELECT role, granted_by_id, granted_at FROM event_permissions WHERE event_id = $1 AND user_id = $2`
	var (
		role      string
		grantedBy int
		grantedAt time.Time
	)
	err := r.db.QueryRow(ctx, query, eventId, userId).Scan(&role, &grantedBy, &grantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrPermissionNotFound
	}
	if err != nil {
		err = fmt.Errorf("could not find permission: %w", err)
		log.Error(err)
		return Permission{}, err
	}
	parsed, err := ParseRole(role)
	if err != nil {
		return Permission{}, err
	}
	return Permission{EventId: eventId, UserId: userId, Role: parsed, GrantedBy: grantedBy, GrantedAt: grantedAt}, nil
}

func (r *RepositoryImpl) Upsert(ctx context.Context, p Permission) error {
	query := `INSERT INTO event_permissions (event_id, user_id, role, granted_by_id, granted_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (event_id, user_id)
			  DO UPDATE SET role = EXCLUDED.role, granted_by_id = EXCLUDED.granted_by_id, granted_at = EXCLUDED.granted_at`
	_, err := r.db.Exec(ctx, query, p.EventId, p.UserId, p.Role.String(), p.GrantedBy, p.GrantedAt)
	if err != nil {
		err = fmt.Errorf("could not store permission: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, eventId uuid.UUID, userId int) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM event_permissions WHERE event_id = $1 AND user_id = $2`, eventId, userId)
	if err != nil {
		err = fmt.Errorf("could not delete permission: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *RepositoryImpl) ListForEvent(ctx context.Context, eventId uuid.UUID) ([]Permission, error) {
	query := `SELECT user_id, role, granted_by_id, granted_at FROM event_permissions
			  WHERE event_id = $1 ORDER BY granted_at, user_id`
	rows, err := r.db.Query(ctx, query, eventId)
	if err != nil {
		err = fmt.Errorf("could not list permissions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	permissions := make([]Permission, 0)
	for rows.Next() {
		p := Permission{EventId: eventId}
		var role string
		if err := rows.Scan(&p.UserId, &role, &p.GrantedBy, &p.GrantedAt); err != nil {
			err = fmt.Errorf("error scanning permission: %w", err)
			log.Error(err)
			return nil, err
		}
		if p.Role, err = ParseRole(role); err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over permissions: %v", err)
		return nil, err
	}
	return permissions, nil
}
