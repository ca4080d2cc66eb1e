package repository

import (
	"context"

	"github.com/arosnov/schedhook/internal/domain"
)

// AttemptRepository persists Attempts. Append-only: there is no
// update or delete method because Attempts never change after
// insertion.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.Attempt) (*domain.Attempt, error)
	// ListByRunID returns all attempts for a run, ordered by
	// attempt_number ASC. Ownership/existence of the run is assumed
	// verified by the caller.
	ListByRunID(ctx context.Context, runID string) ([]*domain.Attempt, error)
}
