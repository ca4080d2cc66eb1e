package usecase

import (
	"context"
	"fmt"

	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/repository"
)

// RunUsecase is read-only: Runs are created exclusively by the
// Scheduler's firing algorithm, never through the API.
type RunUsecase struct {
	runs     repository.RunRepository
	attempts repository.AttemptRepository
}

func NewRunUsecase(runs repository.RunRepository, attempts repository.AttemptRepository) *RunUsecase {
	return &RunUsecase{runs: runs, attempts: attempts}
}

func (u *RunUsecase) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	r, err := u.runs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

type ListRunsInput struct {
	ScheduleID string
	Status     string
	Cursor     string
	Limit      int
}

type ListRunsResult struct {
	Runs       []*domain.Run
	NextCursor *string
}

func (u *RunUsecase) ListRuns(ctx context.Context, input ListRunsInput) (ListRunsResult, error) {
	limit := clampLimit(input.Limit)

	repoInput := repository.ListRunsInput{
		ScheduleID: input.ScheduleID,
		Status:     input.Status,
		Limit:      limit + 1,
	}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListRunsResult{}, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidCursor)
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	runs, err := u.runs.List(ctx, repoInput)
	if err != nil {
		return ListRunsResult{}, fmt.Errorf("list runs: %w", err)
	}

	var nextCursor *string
	if len(runs) == limit+1 {
		last := runs[limit]
		c := encodeCursor(last.ScheduledAt, last.ID)
		nextCursor = &c
		runs = runs[:limit]
	}

	return ListRunsResult{Runs: runs, NextCursor: nextCursor}, nil
}

// ListAttempts returns every Attempt for a Run, oldest first. Existence
// of the Run is verified first so a bad ID reports as not-found rather
// than an empty attempt list.
func (u *RunUsecase) ListAttempts(ctx context.Context, runID string) ([]*domain.Attempt, error) {
	if _, err := u.runs.GetByID(ctx, runID); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	atts, err := u.attempts.ListByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return atts, nil
}
