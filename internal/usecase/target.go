package usecase

import (
	"context"
	"fmt"
	"net/url"

	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/repository"
)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "HEAD": true,
}

// TargetUsecase mediates Target CRUD and the timer-disarm handshake
// that must happen before a Target's cascading delete commits.
type TargetUsecase struct {
	targets      repository.TargetRepository
	schedules    repository.ScheduleRepository
	timerDisarm  TimerDisarmer
	defaultTimeoutSeconds int
	maxTimeoutSeconds     int
}

// TimerDisarmer is the subset of the Scheduler's API the usecase layer
// needs: disarming every schedule referencing a target before its
// cascading delete commits at the Store.
type TimerDisarmer interface {
	OnTargetDeleted(ctx context.Context, targetID string)
}

func NewTargetUsecase(targets repository.TargetRepository, schedules repository.ScheduleRepository, disarmer TimerDisarmer, defaultTimeoutSeconds, maxTimeoutSeconds int) *TargetUsecase {
	return &TargetUsecase{
		targets:               targets,
		schedules:             schedules,
		timerDisarm:           disarmer,
		defaultTimeoutSeconds: defaultTimeoutSeconds,
		maxTimeoutSeconds:     maxTimeoutSeconds,
	}
}

type CreateTargetInput struct {
	Name           string
	URL            string
	Method         string
	Headers        map[string]string
	BodyTemplate   *string
	TimeoutSeconds int
}

func (u *TargetUsecase) CreateTarget(ctx context.Context, input CreateTargetInput) (*domain.Target, error) {
	if err := u.validate(input.URL, input.Method, input.TimeoutSeconds); err != nil {
		return nil, err
	}

	if input.Headers == nil {
		input.Headers = make(map[string]string)
	}
	timeout := input.TimeoutSeconds
	if timeout == 0 {
		timeout = u.defaultTimeoutSeconds
	}

	t := &domain.Target{
		Name:           input.Name,
		URL:            input.URL,
		Method:         input.Method,
		Headers:        input.Headers,
		BodyTemplate:   input.BodyTemplate,
		TimeoutSeconds: timeout,
	}

	created, err := u.targets.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}
	return created, nil
}

func (u *TargetUsecase) validate(rawURL, method string, timeoutSeconds int) error {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", domain.ErrInvalidTarget)
	}
	if !validMethods[method] {
		return fmt.Errorf("%w: unsupported method %q", domain.ErrInvalidTarget, method)
	}
	if timeoutSeconds != 0 && (timeoutSeconds < 1 || timeoutSeconds > u.maxTimeoutSeconds) {
		return fmt.Errorf("%w: timeout_seconds must be between 1 and %d", domain.ErrInvalidTarget, u.maxTimeoutSeconds)
	}
	return nil
}

func (u *TargetUsecase) GetTarget(ctx context.Context, id string) (*domain.Target, error) {
	t, err := u.targets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

type ListTargetsInput struct {
	Cursor string
	Limit  int
}

type ListTargetsResult struct {
	Targets    []*domain.Target
	NextCursor *string
}

func (u *TargetUsecase) ListTargets(ctx context.Context, input ListTargetsInput) (ListTargetsResult, error) {
	limit := clampLimit(input.Limit)

	repoInput := repository.ListTargetsInput{Limit: limit + 1}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListTargetsResult{}, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidCursor)
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	targets, err := u.targets.List(ctx, repoInput)
	if err != nil {
		return ListTargetsResult{}, fmt.Errorf("list targets: %w", err)
	}

	var nextCursor *string
	if len(targets) == limit+1 {
		last := targets[limit]
		c := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &c
		targets = targets[:limit]
	}

	return ListTargetsResult{Targets: targets, NextCursor: nextCursor}, nil
}

type UpdateTargetInput struct {
	ID             string
	Name           string
	URL            string
	Method         string
	Headers        map[string]string
	BodyTemplate   *string
	TimeoutSeconds int
}

func (u *TargetUsecase) UpdateTarget(ctx context.Context, input UpdateTargetInput) (*domain.Target, error) {
	if err := u.validate(input.URL, input.Method, input.TimeoutSeconds); err != nil {
		return nil, err
	}

	existing, err := u.targets.GetByID(ctx, input.ID)
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}

	existing.Name = input.Name
	existing.URL = input.URL
	existing.Method = input.Method
	existing.Headers = input.Headers
	existing.BodyTemplate = input.BodyTemplate
	if input.TimeoutSeconds != 0 {
		existing.TimeoutSeconds = input.TimeoutSeconds
	}

	updated, err := u.targets.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("update target: %w", err)
	}
	return updated, nil
}

// DeleteTarget disarms every schedule referencing the target, then
// deletes it; the database foreign keys cascade to schedules, runs,
// and attempts.
func (u *TargetUsecase) DeleteTarget(ctx context.Context, id string) error {
	u.timerDisarm.OnTargetDeleted(ctx, id)

	if err := u.targets.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	return nil
}
