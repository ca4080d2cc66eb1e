package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arosnov/schedhook/internal/clock"
	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/repository"
	"github.com/arosnov/schedhook/internal/usecase"
)

type fakeScheduleRepo struct {
	create       func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	getByID      func(ctx context.Context, id string) (*domain.Schedule, error)
	updateStatus func(ctx context.Context, id string, status domain.ScheduleStatus, fields repository.ScheduleStatusFields) error
}

func (r *fakeScheduleRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return r.create(ctx, s)
}
func (r *fakeScheduleRepo) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	return r.getByID(ctx, id)
}
func (r *fakeScheduleRepo) List(context.Context, repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	return nil, nil
}
func (r *fakeScheduleRepo) ListByTargetID(context.Context, string) ([]*domain.Schedule, error) {
	return nil, nil
}
func (r *fakeScheduleRepo) ListActive(context.Context) ([]*domain.Schedule, error) { return nil, nil }
func (r *fakeScheduleRepo) UpdateStatus(ctx context.Context, id string, status domain.ScheduleStatus, fields repository.ScheduleStatusFields) error {
	return r.updateStatus(ctx, id, status, fields)
}
func (r *fakeScheduleRepo) IncrementRunsCount(context.Context, string) error { return nil }
func (r *fakeScheduleRepo) Delete(context.Context, string) error            { return nil }

type fakeTargetRepoSimple struct {
	target *domain.Target
	err    error
}

func (r *fakeTargetRepoSimple) Create(context.Context, *domain.Target) (*domain.Target, error) {
	return nil, nil
}
func (r *fakeTargetRepoSimple) GetByID(context.Context, string) (*domain.Target, error) {
	return r.target, r.err
}
func (r *fakeTargetRepoSimple) List(context.Context, repository.ListTargetsInput) ([]*domain.Target, error) {
	return nil, nil
}
func (r *fakeTargetRepoSimple) Update(context.Context, *domain.Target) (*domain.Target, error) {
	return nil, nil
}
func (r *fakeTargetRepoSimple) Delete(context.Context, string) error { return nil }

type fakeTimerArmer struct {
	created  *domain.Schedule
	paused   string
	resumed  string
	deleted  string
	updated  *domain.Schedule
}

func (a *fakeTimerArmer) OnScheduleCreated(s *domain.Schedule) { a.created = s }
func (a *fakeTimerArmer) OnScheduleUpdated(s *domain.Schedule) { a.updated = s }
func (a *fakeTimerArmer) OnSchedulePaused(id string)           { a.paused = id }
func (a *fakeTimerArmer) OnScheduleResumed(id string)          { a.resumed = id }
func (a *fakeTimerArmer) OnScheduleDeleted(id string)          { a.deleted = id }

func TestCreateSchedule_RejectsMismatchedIntervalAndCron(t *testing.T) {
	targets := &fakeTargetRepoSimple{target: &domain.Target{ID: "target-1"}}
	u := usecase.NewScheduleUsecase(&fakeScheduleRepo{}, targets, &fakeTimerArmer{}, clock.NewFixed(time.Now()))

	_, err := u.CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		TargetID: "target-1",
		Type:     domain.ScheduleTypeInterval,
		// IntervalSeconds left zero — invalid for type=interval.
	})
	if !errors.Is(err, domain.ErrInvalidScheduleType) {
		t.Fatalf("want ErrInvalidScheduleType, got %v", err)
	}
}

func TestCreateSchedule_RejectsInvalidCronExpression(t *testing.T) {
	targets := &fakeTargetRepoSimple{target: &domain.Target{ID: "target-1"}}
	u := usecase.NewScheduleUsecase(&fakeScheduleRepo{}, targets, &fakeTimerArmer{}, clock.NewFixed(time.Now()))

	_, err := u.CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		TargetID:       "target-1",
		Type:           domain.ScheduleTypeCron,
		CronExpression: "not a cron expression",
	})
	if !errors.Is(err, domain.ErrInvalidCronExpr) {
		t.Fatalf("want ErrInvalidCronExpr, got %v", err)
	}
}

func TestCreateSchedule_RejectsBothDurationAndMaxRuns(t *testing.T) {
	targets := &fakeTargetRepoSimple{target: &domain.Target{ID: "target-1"}}
	u := usecase.NewScheduleUsecase(&fakeScheduleRepo{}, targets, &fakeTimerArmer{}, clock.NewFixed(time.Now()))

	dur, maxRuns := 3600, 10
	_, err := u.CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		TargetID:        "target-1",
		Type:            domain.ScheduleTypeInterval,
		IntervalSeconds: 60,
		DurationSeconds: &dur,
		MaxRuns:         &maxRuns,
	})
	if !errors.Is(err, domain.ErrInvalidWindow) {
		t.Fatalf("want ErrInvalidWindow, got %v", err)
	}
}

func TestCreateSchedule_ArmsTimerOnSuccess(t *testing.T) {
	targets := &fakeTargetRepoSimple{target: &domain.Target{ID: "target-1"}}
	repo := &fakeScheduleRepo{
		create: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			s.ID = "sched-1"
			return s, nil
		},
	}
	armer := &fakeTimerArmer{}
	u := usecase.NewScheduleUsecase(repo, targets, armer, clock.NewFixed(time.Now()))

	created, err := u.CreateSchedule(context.Background(), usecase.CreateScheduleInput{
		TargetID:        "target-1",
		Type:            domain.ScheduleTypeInterval,
		IntervalSeconds: 60,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if armer.created != created {
		t.Error("expected the scheduler to be notified of the new schedule")
	}
}

func TestPauseSchedule_RejectsAlreadyPaused(t *testing.T) {
	repo := &fakeScheduleRepo{
		getByID: func(context.Context, string) (*domain.Schedule, error) {
			return &domain.Schedule{ID: "sched-1", Status: domain.SchedulePaused}, nil
		},
	}
	u := usecase.NewScheduleUsecase(repo, &fakeTargetRepoSimple{}, &fakeTimerArmer{}, clock.NewFixed(time.Now()))

	err := u.PauseSchedule(context.Background(), "sched-1")
	if !errors.Is(err, domain.ErrScheduleAlreadyPaused) {
		t.Fatalf("want ErrScheduleAlreadyPaused, got %v", err)
	}
}

func TestPauseSchedule_RejectsCompleted(t *testing.T) {
	repo := &fakeScheduleRepo{
		getByID: func(context.Context, string) (*domain.Schedule, error) {
			return &domain.Schedule{ID: "sched-1", Status: domain.ScheduleCompleted}, nil
		},
	}
	u := usecase.NewScheduleUsecase(repo, &fakeTargetRepoSimple{}, &fakeTimerArmer{}, clock.NewFixed(time.Now()))

	err := u.PauseSchedule(context.Background(), "sched-1")
	if !errors.Is(err, domain.ErrScheduleCompleted) {
		t.Fatalf("want ErrScheduleCompleted, got %v", err)
	}
}

func TestPauseSchedule_DisarmsTimer(t *testing.T) {
	repo := &fakeScheduleRepo{
		getByID: func(context.Context, string) (*domain.Schedule, error) {
			return &domain.Schedule{ID: "sched-1", Status: domain.ScheduleActive}, nil
		},
		updateStatus: func(context.Context, string, domain.ScheduleStatus, repository.ScheduleStatusFields) error {
			return nil
		},
	}
	armer := &fakeTimerArmer{}
	u := usecase.NewScheduleUsecase(repo, &fakeTargetRepoSimple{}, armer, clock.NewFixed(time.Now()))

	if err := u.PauseSchedule(context.Background(), "sched-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if armer.paused != "sched-1" {
		t.Error("expected timer to be disarmed for the paused schedule")
	}
}
