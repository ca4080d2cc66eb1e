package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/arosnov/schedhook/internal/clock"
	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/repository"
	"github.com/robfig/cron/v3"
)

// TimerArmer is the subset of the Scheduler's API the usecase layer
// drives directly: announcing lifecycle events so the in-memory timer
// map stays in sync with what's persisted.
type TimerArmer interface {
	OnScheduleCreated(s *domain.Schedule)
	OnScheduleUpdated(s *domain.Schedule)
	OnSchedulePaused(id string)
	OnScheduleResumed(id string)
	OnScheduleDeleted(id string)
}

type ScheduleUsecase struct {
	schedules repository.ScheduleRepository
	targets   repository.TargetRepository
	timers    TimerArmer
	clock     clock.Clock
}

func NewScheduleUsecase(schedules repository.ScheduleRepository, targets repository.TargetRepository, timers TimerArmer, clk clock.Clock) *ScheduleUsecase {
	return &ScheduleUsecase{schedules: schedules, targets: targets, timers: timers, clock: clk}
}

type CreateScheduleInput struct {
	Name            string
	TargetID        string
	Type            domain.ScheduleType
	IntervalSeconds int
	CronExpression  string
	StartAt         *time.Time
	DurationSeconds *int
	MaxRuns         *int
}

func (u *ScheduleUsecase) validateTiming(input CreateScheduleInput) error {
	switch input.Type {
	case domain.ScheduleTypeInterval:
		if input.IntervalSeconds <= 0 || input.CronExpression != "" {
			return domain.ErrInvalidScheduleType
		}
	case domain.ScheduleTypeCron:
		if input.CronExpression == "" || input.IntervalSeconds != 0 {
			return domain.ErrInvalidScheduleType
		}
		if _, err := cron.ParseStandard(input.CronExpression); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidCronExpr, err)
		}
	default:
		return domain.ErrInvalidScheduleType
	}

	if input.DurationSeconds != nil && input.MaxRuns != nil {
		return domain.ErrInvalidWindow
	}
	return nil
}

func (u *ScheduleUsecase) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*domain.Schedule, error) {
	if err := u.validateTiming(input); err != nil {
		return nil, err
	}

	if _, err := u.targets.GetByID(ctx, input.TargetID); err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}

	startAt := u.clock.Now()
	if input.StartAt != nil {
		startAt = *input.StartAt
	}

	s := &domain.Schedule{
		Name:            input.Name,
		TargetID:        input.TargetID,
		Type:            input.Type,
		IntervalSeconds: input.IntervalSeconds,
		CronExpression:  input.CronExpression,
		StartAt:         startAt,
		DurationSeconds: input.DurationSeconds,
		MaxRuns:         input.MaxRuns,
		Status:          domain.ScheduleActive,
	}

	created, err := u.schedules.Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	u.timers.OnScheduleCreated(created)
	return created, nil
}

func (u *ScheduleUsecase) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	s, err := u.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

type ListSchedulesInput struct {
	Cursor string
	Limit  int
}

type ListSchedulesResult struct {
	Schedules  []*domain.Schedule
	NextCursor *string
}

func (u *ScheduleUsecase) ListSchedules(ctx context.Context, input ListSchedulesInput) (ListSchedulesResult, error) {
	limit := clampLimit(input.Limit)

	repoInput := repository.ListSchedulesInput{Limit: limit + 1}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListSchedulesResult{}, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidCursor)
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	schedules, err := u.schedules.List(ctx, repoInput)
	if err != nil {
		return ListSchedulesResult{}, fmt.Errorf("list schedules: %w", err)
	}

	var nextCursor *string
	if len(schedules) == limit+1 {
		last := schedules[limit]
		c := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &c
		schedules = schedules[:limit]
	}

	return ListSchedulesResult{Schedules: schedules, NextCursor: nextCursor}, nil
}

func (u *ScheduleUsecase) PauseSchedule(ctx context.Context, id string) error {
	s, err := u.schedules.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}
	if s.Status == domain.ScheduleCompleted {
		return domain.ErrScheduleCompleted
	}
	if s.Status == domain.SchedulePaused {
		return domain.ErrScheduleAlreadyPaused
	}

	if err := u.schedules.UpdateStatus(ctx, id, domain.SchedulePaused, repository.ScheduleStatusFields{}); err != nil {
		return fmt.Errorf("pause schedule: %w", err)
	}
	u.timers.OnSchedulePaused(id)
	return nil
}

func (u *ScheduleUsecase) ResumeSchedule(ctx context.Context, id string) error {
	s, err := u.schedules.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}
	if s.Status == domain.ScheduleCompleted {
		return domain.ErrScheduleCompleted
	}
	if s.Status == domain.ScheduleActive {
		return domain.ErrScheduleNotPaused
	}

	if err := u.schedules.UpdateStatus(ctx, id, domain.ScheduleActive, repository.ScheduleStatusFields{}); err != nil {
		return fmt.Errorf("resume schedule: %w", err)
	}
	u.timers.OnScheduleResumed(id)
	return nil
}

func (u *ScheduleUsecase) DeleteSchedule(ctx context.Context, id string) error {
	u.timers.OnScheduleDeleted(id)

	if err := u.schedules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
