package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	Insert(ctx context.Context, e Entry) error
	// ListForUser returns the newest entries of userId first.
	ListForUser(ctx context.Context, userId int, limit int) ([]Entry, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Insert(ctx context.Context, e Entry) error {
	query := `INSERT INTO audit_logs (method, path, user_id, status_code, ip_address, request_body, duration_ms, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var userId *int
	if e.UserId > 0 {
		userId = &e.UserId
	}
	var body []byte
	if len(e.RequestBody) > 0 {
		body = e.RequestBody
	}
	_, err := r.db.Exec(ctx, query, e.Method, e.Path, userId, e.Status, e.IpAddress, body, e.Duration.Milliseconds(), e.CreatedAt)
	if err != nil {
		err = fmt.Errorf("could not store audit entry: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) ListForUser(ctx context.Context, userId int, limit int) ([]Entry, error) {
	query := `SELECT id, method, path, user_id, status_code, ip_address, request_body, duration_ms, created_at
			  FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, userId, limit)
	if err != nil {
		err = fmt.Errorf("could not list audit entries: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e        Entry
			user     *int
			body     []byte
			duration int64
		)
		if err := rows.Scan(&e.Id, &e.Method, &e.Path, &user, &e.Status, &e.IpAddress, &body, &duration, &e.CreatedAt); err != nil {
			err = fmt.Errorf("error scanning audit entry: %w", err)
			log.Error(err)
			return nil, err
		}
		if user != nil {
			e.UserId = *user
		}
		e.RequestBody = body
		e.Duration = time.Duration(duration) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over audit entries: %v", err)
		return nil, err
	}
	return entries, nil
}
