// Package trigger computes the next firing instant for a Schedule. It
// is pure: no I/O, no reference to live timers, just (schedule,
// instant) -> next instant. Both the in-memory Scheduler and Recovery
// depend on it to decide what to arm.
package trigger

import (
	"fmt"
	"time"

	"github.com/arosnov/schedhook/internal/domain"
	"github.com/robfig/cron/v3"
)

// Next returns the next firing instant for s strictly after `after`,
// or ok=false if the schedule's window has already closed as of
// `after`.
func Next(s *domain.Schedule, after time.Time) (time.Time, bool, error) {
	if s.WindowClosed(after) {
		return time.Time{}, false, nil
	}

	var next time.Time
	switch s.Type {
	case domain.ScheduleTypeInterval:
		next = nextInterval(s, after)
	case domain.ScheduleTypeCron:
		n, err := nextCron(s, after)
		if err != nil {
			return time.Time{}, false, err
		}
		next = n
	default:
		return time.Time{}, false, fmt.Errorf("trigger: unknown schedule type %q", s.Type)
	}

	return next, true, nil
}

// nextInterval: if after is before start, fire at start; otherwise
// the smallest start + k*interval strictly greater than after.
func nextInterval(s *domain.Schedule, after time.Time) time.Time {
	if after.Before(s.StartAt) {
		return s.StartAt
	}
	interval := time.Duration(s.IntervalSeconds) * time.Second
	elapsed := after.Sub(s.StartAt)
	k := elapsed/interval + 1
	next := s.StartAt.Add(time.Duration(k) * interval)
	for !next.After(after) {
		next = next.Add(interval)
	}
	return next
}

// nextCron evaluates the standard five-field expression and returns
// the next match strictly greater than max(after, start_at).
func nextCron(s *domain.Schedule, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(s.CronExpression)
	if err != nil {
		// Validated at schedule-create time; should never happen here.
		return time.Time{}, fmt.Errorf("trigger: invalid cron expression in schedule %s: %w", s.ID, err)
	}

	base := after
	if s.StartAt.After(base) {
		base = s.StartAt
	}
	return sched.Next(base), nil
}
