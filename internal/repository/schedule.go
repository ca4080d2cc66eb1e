package repository

import (
	"context"
	"time"

	"github.com/arosnov/schedhook/internal/domain"
)

type ListSchedulesInput struct {
	CursorTime *time.Time
	CursorID   string
	Limit      int
}

// ScheduleStatusFields carries the optional fields an UpdateStatus
// call may also set, so a status transition and an advance of
// next_run_at/runs_count land in the same write.
type ScheduleStatusFields struct {
	NextRunAt *time.Time
	RunsCount *int
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	List(ctx context.Context, input ListSchedulesInput) ([]*domain.Schedule, error)
	ListByTargetID(ctx context.Context, targetID string) ([]*domain.Schedule, error)
	// UpdateStatus moves status (active/paused/completed) and
	// optionally advances next_run_at / runs_count in the same write.
	UpdateStatus(ctx context.Context, id string, status domain.ScheduleStatus, fields ScheduleStatusFields) error
	// IncrementRunsCount is called by the Scheduler immediately after a
	// Run is successfully created for a firing.
	IncrementRunsCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// ListActive is used by Recovery to rearm every active schedule at
	// startup.
	ListActive(ctx context.Context) ([]*domain.Schedule, error)
}
