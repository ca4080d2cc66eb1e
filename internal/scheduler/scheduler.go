// Package scheduler owns the in-memory set of armed timers that drive
// Schedule firings. A single goroutine reacts to lifecycle events and
// its own timers, so the timer map is only ever touched from one
// place.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/arosnov/schedhook/internal/clock"
	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/metrics"
	"github.com/arosnov/schedhook/internal/repository"
	"github.com/arosnov/schedhook/internal/trigger"
)

// RunDispatcher hands a fired Run off for execution. Satisfied by
// *executor.Pool.
type RunDispatcher interface {
	Submit(run *domain.Run, target *domain.Target)
}

type eventKind int

const (
	evScheduleCreated eventKind = iota
	evScheduleUpdated
	evSchedulePaused
	evScheduleResumed
	evScheduleDeleted
	evTargetDeleted
	evTimerFired
)

type event struct {
	kind       eventKind
	scheduleID string
	schedule   *domain.Schedule
	targetID   string
	done       chan struct{}
}

// Scheduler arms and fires per-schedule timers. All mutation of its
// timer map happens inside run(), driven exclusively by events
// arriving on a single channel, so the map never needs a lock.
type Scheduler struct {
	schedules repository.ScheduleRepository
	runs      repository.RunRepository
	targets   repository.TargetRepository
	dispatch  RunDispatcher
	clock     clock.Clock
	logger    *slog.Logger

	misfireGrace time.Duration

	events  chan event
	timers  map[string]*time.Timer
	stopped chan struct{}
}

// New constructs a Scheduler. Call Run in its own goroutine to start
// the event loop; nothing is armed until schedules are announced via
// OnScheduleCreated (Recovery does this for every active schedule at
// startup).
func New(
	schedules repository.ScheduleRepository,
	runs repository.RunRepository,
	targets repository.TargetRepository,
	dispatch RunDispatcher,
	clk clock.Clock,
	logger *slog.Logger,
	misfireGrace time.Duration,
) *Scheduler {
	return &Scheduler{
		schedules:    schedules,
		runs:         runs,
		targets:      targets,
		dispatch:     dispatch,
		clock:        clk,
		logger:       logger.With("component", "scheduler"),
		misfireGrace: misfireGrace,
		events:       make(chan event, 256),
		timers:       make(map[string]*time.Timer),
		stopped:      make(chan struct{}),
	}
}

// Run is the event loop. It blocks until ctx is canceled, at which
// point every armed timer is stopped and Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.stopped)
	s.logger.Info("scheduler started")
	for {
		select {
		case <-ctx.Done():
			for id, t := range s.timers {
				t.Stop()
				delete(s.timers, id)
			}
			s.logger.Info("scheduler shut down")
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// Stopped reports when the event loop has fully exited.
func (s *Scheduler) Stopped() <-chan struct{} {
	return s.stopped
}

// OnScheduleCreated arms sch if it is active and its window is still
// open.
func (s *Scheduler) OnScheduleCreated(sch *domain.Schedule) {
	s.events <- event{kind: evScheduleCreated, scheduleID: sch.ID, schedule: sch}
}

// OnScheduleUpdated disarms the existing timer (if any) and rearms
// from the new definition.
func (s *Scheduler) OnScheduleUpdated(sch *domain.Schedule) {
	s.events <- event{kind: evScheduleUpdated, scheduleID: sch.ID, schedule: sch}
}

// OnSchedulePaused disarms id without touching persisted state further
// — the caller has already written status=paused.
func (s *Scheduler) OnSchedulePaused(id string) {
	s.events <- event{kind: evSchedulePaused, scheduleID: id}
}

// OnScheduleResumed rearms id from its persisted definition.
func (s *Scheduler) OnScheduleResumed(id string) {
	s.events <- event{kind: evScheduleResumed, scheduleID: id}
}

// OnScheduleDeleted disarms id and drops any pending reference.
func (s *Scheduler) OnScheduleDeleted(id string) {
	s.events <- event{kind: evScheduleDeleted, scheduleID: id}
}

// OnTargetDeleted disarms every schedule referencing targetID and
// blocks until the event loop has done so. Callers must invoke this,
// and wait for it to take effect, before committing the cascading
// delete of those schedules: without the wait, the event loop could
// still be holding an armed timer for a schedule whose row the caller
// is about to delete out from under it.
func (s *Scheduler) OnTargetDeleted(ctx context.Context, targetID string) {
	done := make(chan struct{})
	select {
	case s.events <- event{kind: evTargetDeleted, targetID: targetID, done: done}:
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Scheduler) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evScheduleCreated, evScheduleUpdated:
		s.disarm(ev.scheduleID)
		s.arm(ctx, ev.schedule)
	case evSchedulePaused:
		s.disarm(ev.scheduleID)
	case evScheduleResumed:
		sch, err := s.schedules.GetByID(ctx, ev.scheduleID)
		if err != nil {
			s.logger.ErrorContext(ctx, "resume: load schedule", "schedule_id", ev.scheduleID, "error", err)
			return
		}
		s.arm(ctx, sch)
	case evScheduleDeleted:
		s.disarm(ev.scheduleID)
	case evTargetDeleted:
		scheds, err := s.schedules.ListByTargetID(ctx, ev.targetID)
		if err != nil {
			s.logger.ErrorContext(ctx, "target deleted: list schedules", "target_id", ev.targetID, "error", err)
		} else {
			for _, sch := range scheds {
				s.disarm(sch.ID)
			}
		}
		if ev.done != nil {
			close(ev.done)
		}
	case evTimerFired:
		s.fire(ctx, ev.scheduleID)
	}
}

// arm computes the next fire instant, records it as next_run_at and
// installs a single-shot timer for it, or marks the schedule completed
// if the window is already closed.
func (s *Scheduler) arm(ctx context.Context, sch *domain.Schedule) {
	if sch.Status != domain.ScheduleActive {
		return
	}

	next, ok, err := trigger.Next(sch, s.clock.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "compute next fire", "schedule_id", sch.ID, "error", err)
		return
	}
	if !ok {
		s.complete(ctx, sch.ID)
		return
	}

	if err := s.schedules.UpdateStatus(ctx, sch.ID, domain.ScheduleActive, repository.ScheduleStatusFields{NextRunAt: &next}); err != nil {
		s.logger.ErrorContext(ctx, "arm: persist next_run_at", "schedule_id", sch.ID, "error", err)
	}
	sch.NextRunAt = &next

	delay := next.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	id := sch.ID
	s.timers[id] = time.AfterFunc(delay, func() {
		s.events <- event{kind: evTimerFired, scheduleID: id}
	})
	metrics.SchedulesArmedTotal.Set(float64(len(s.timers)))
}

func (s *Scheduler) disarm(scheduleID string) {
	if t, ok := s.timers[scheduleID]; ok {
		t.Stop()
		delete(s.timers, scheduleID)
		metrics.SchedulesArmedTotal.Set(float64(len(s.timers)))
	}
}

func (s *Scheduler) complete(ctx context.Context, scheduleID string) {
	if err := s.schedules.UpdateStatus(ctx, scheduleID, domain.ScheduleCompleted, repository.ScheduleStatusFields{}); err != nil {
		s.logger.ErrorContext(ctx, "mark schedule completed", "schedule_id", scheduleID, "error", err)
	}
}

// fire runs the five-step firing algorithm for scheduleID: window
// gate, idempotent Run creation, single-inflight gate, rearm, then
// hand off to the executor pool.
func (s *Scheduler) fire(ctx context.Context, scheduleID string) {
	delete(s.timers, scheduleID)

	sch, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		s.logger.ErrorContext(ctx, "fire: load schedule", "schedule_id", scheduleID, "error", err)
		return
	}
	if sch.Status != domain.ScheduleActive {
		return
	}

	now := s.clock.Now()
	fireAt, ok := s.checkMisfire(sch, now)
	if !ok {
		metrics.MisfiresTotal.Inc()
		s.logger.WarnContext(ctx, "dropping misfired firing past grace period",
			"schedule_id", scheduleID, "intended", sch.NextRunAt, "now", now)
		s.rearm(ctx, sch)
		return
	}

	// Step 1: window gate.
	if sch.WindowClosed(fireAt) {
		s.complete(ctx, scheduleID)
		return
	}

	// Step 2: idempotent Run creation.
	run := &domain.Run{
		ScheduleID:     sch.ID,
		TargetID:       sch.TargetID,
		ScheduledAt:    fireAt,
		Status:         domain.RunPending,
		IdempotencyKey: domain.IdempotencyKey(sch.ID, fireAt),
	}
	created, err := s.runs.Create(ctx, run)
	duplicate := false
	switch {
	case err == nil:
		run = created
	case err == domain.ErrDuplicateRun:
		duplicate = true
	default:
		s.logger.ErrorContext(ctx, "fire: create run", "schedule_id", scheduleID, "error", err)
		s.rearm(ctx, sch)
		return
	}

	enqueue := false
	switch {
	case duplicate:
		metrics.FiringsTotal.WithLabelValues("duplicate").Inc()
	default:
		// Step 3: concurrency gate — at most one in-flight Run per schedule.
		inFlight, err := s.runs.CountInFlight(ctx, sch.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "fire: count in-flight", "schedule_id", scheduleID, "error", err)
		} else if inFlight <= 1 {
			enqueue = true
		}
		if err := s.schedules.IncrementRunsCount(ctx, sch.ID); err != nil {
			s.logger.ErrorContext(ctx, "fire: increment runs_count", "schedule_id", scheduleID, "error", err)
		}
		sch.RunsCount++
		if enqueue {
			metrics.FiringsTotal.WithLabelValues("enqueued").Inc()
		} else {
			metrics.FiringsTotal.WithLabelValues("skipped_inflight").Inc()
		}
	}

	// Step 4: rearm, or complete if the window just closed.
	s.rearm(ctx, sch)

	// Step 5: hand off.
	if enqueue {
		target, err := s.targets.GetByID(ctx, sch.TargetID)
		if err != nil {
			s.logger.ErrorContext(ctx, "fire: load target", "schedule_id", scheduleID, "target_id", sch.TargetID, "error", err)
			return
		}
		s.dispatch.Submit(run, target)
	}
}

// checkMisfire applies the misfire grace policy: a firing whose
// intended instant (sch.NextRunAt) is within misfireGrace of now
// proceeds as if on time — this is what coalesces several piled-up
// timer callbacks into a single fire, since they all observe the same
// persisted NextRunAt until the first one rearms it. A firing whose
// intended instant is further in the past than the grace period is
// dropped: ok=false tells the caller to rearm for the future without
// creating a Run.
func (s *Scheduler) checkMisfire(sch *domain.Schedule, now time.Time) (fireAt time.Time, ok bool) {
	if sch.NextRunAt == nil {
		return now, true
	}
	due := *sch.NextRunAt
	if now.Sub(due) <= s.misfireGrace {
		return due, true
	}
	return time.Time{}, false
}

func (s *Scheduler) rearm(ctx context.Context, sch *domain.Schedule) {
	next, ok, err := trigger.Next(sch, s.clock.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "rearm: compute next fire", "schedule_id", sch.ID, "error", err)
		return
	}
	if !ok {
		s.complete(ctx, sch.ID)
		return
	}

	if err := s.schedules.UpdateStatus(ctx, sch.ID, domain.ScheduleActive, repository.ScheduleStatusFields{NextRunAt: &next}); err != nil {
		s.logger.ErrorContext(ctx, "rearm: persist next_run_at", "schedule_id", sch.ID, "error", err)
	}
	sch.NextRunAt = &next

	delay := next.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	id := sch.ID
	s.timers[id] = time.AfterFunc(delay, func() {
		s.events <- event{kind: evTimerFired, scheduleID: id}
	})
	metrics.SchedulesArmedTotal.Set(float64(len(s.timers)))
}
