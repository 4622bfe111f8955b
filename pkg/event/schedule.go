package event

import (
	"context"

	"github.com/klokku/sharecal/pkg/conflict"
)

// ScheduleLister feeds the conflict detector with every live event a user can see.
type ScheduleLister struct {
	repo Repository
}

func NewScheduleLister(repo Repository) *ScheduleLister {
	return &ScheduleLister{repo: repo}
}

func (l *ScheduleLister) ListAccessible(ctx context.Context, userId int) ([]conflict.Schedule, error) {
	events, err := l.repo.ListAccessible(ctx, userId, Query{})
	if err != nil {
		return nil, err
	}
	schedules := make([]conflict.Schedule, 0, len(events))
	for _, e := range events {
		schedules = append(schedules, e.schedule())
	}
	return schedules, nil
}
