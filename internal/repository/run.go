package repository

import (
	"context"
	"time"

	"github.com/arosnov/schedhook/internal/domain"
)

type ListRunsInput struct {
	ScheduleID string // optional filter
	Status     string // optional filter
	CursorTime *time.Time
	CursorID   string
	Limit      int
}

// RunStatusFields carries the optional fields a status transition may
// also set in the same write — started_at on pending->running,
// completed_at/attempt_count/final_error on the terminal transition.
type RunStatusFields struct {
	StartedAt    *time.Time
	CompletedAt  *time.Time
	AttemptCount *int
	FinalError   *string
}

type RunRepository interface {
	// Create inserts a Run. Returns domain.ErrDuplicateRun when
	// idempotency_key already exists — the Scheduler treats that as
	// "already handled" and skips enqueueing.
	Create(ctx context.Context, r *domain.Run) (*domain.Run, error)
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, input ListRunsInput) ([]*domain.Run, error)
	// CountInFlight returns the number of pending/running Runs for a
	// schedule — backs the single-inflight-per-schedule gate.
	CountInFlight(ctx context.Context, scheduleID string) (int, error)
	// UpdateStatus only moves non-terminal -> terminal, or
	// pending -> running; the Store enforces this, not the caller.
	UpdateStatus(ctx context.Context, id string, status domain.RunStatus, fields RunStatusFields) error
	// BulkFailInFlight marks every pending/running Run failed with
	// domain.OrphanedError — used once by Recovery at startup.
	BulkFailInFlight(ctx context.Context) (int, error)
}
