package repository

import (
	"context"
	"time"

	"github.com/arosnov/schedhook/internal/domain"
)

// ListTargetsInput paginates targets by (created_at DESC, id DESC).
type ListTargetsInput struct {
	CursorTime *time.Time
	CursorID   string
	Limit      int
}

// TargetRepository persists Targets. UseCase depends on this
// interface, not the concrete Postgres implementation, so the store
// can be swapped or mocked in tests.
type TargetRepository interface {
	Create(ctx context.Context, t *domain.Target) (*domain.Target, error)
	GetByID(ctx context.Context, id string) (*domain.Target, error)
	List(ctx context.Context, input ListTargetsInput) ([]*domain.Target, error)
	Update(ctx context.Context, t *domain.Target) (*domain.Target, error)
	// Delete cascades to schedules, runs, and attempts at the DB level
	// via foreign keys; callers MUST disarm any in-memory timers for
	// schedules referencing this target before calling Delete.
	Delete(ctx context.Context, id string) error
}
