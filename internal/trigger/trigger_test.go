package trigger_test

import (
	"testing"
	"time"

	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/trigger"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestNext_Interval_BeforeStart_ReturnsStart(t *testing.T) {
	start := mustParse(t, "2026-01-01T00:00:00Z")
	s := &domain.Schedule{Type: domain.ScheduleTypeInterval, IntervalSeconds: 10, StartAt: start}

	got, ok, err := trigger.Next(s, start.Add(-time.Hour))
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", got, ok, err)
	}
	if !got.Equal(start) {
		t.Fatalf("got %v, want %v", got, start)
	}
}

func TestNext_Interval_SmallestMultipleStrictlyAfter(t *testing.T) {
	start := mustParse(t, "2026-01-01T00:00:00Z")
	s := &domain.Schedule{Type: domain.ScheduleTypeInterval, IntervalSeconds: 10, StartAt: start}

	// Exactly on a firing boundary — must return the NEXT one, not itself.
	got, ok, err := trigger.Next(s, start.Add(20*time.Second))
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", got, ok, err)
	}
	want := start.Add(30 * time.Second)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNext_Interval_MidwayBetweenBoundaries(t *testing.T) {
	start := mustParse(t, "2026-01-01T00:00:00Z")
	s := &domain.Schedule{Type: domain.ScheduleTypeInterval, IntervalSeconds: 10, StartAt: start}

	got, ok, err := trigger.Next(s, start.Add(24*time.Second))
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", got, ok, err)
	}
	want := start.Add(30 * time.Second)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNext_Interval_DurationWindowClosed(t *testing.T) {
	start := mustParse(t, "2026-01-01T00:00:00Z")
	duration := 35
	s := &domain.Schedule{Type: domain.ScheduleTypeInterval, IntervalSeconds: 10, StartAt: start, DurationSeconds: &duration}

	_, ok, err := trigger.Next(s, start.Add(35*time.Second))
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ok {
		t.Fatalf("expected window closed at t+35 with duration 35")
	}
}

func TestNext_Interval_MaxRunsWindowClosed(t *testing.T) {
	start := mustParse(t, "2026-01-01T00:00:00Z")
	max := 2
	s := &domain.Schedule{Type: domain.ScheduleTypeInterval, IntervalSeconds: 10, StartAt: start, MaxRuns: &max, RunsCount: 2}

	_, ok, err := trigger.Next(s, start)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ok {
		t.Fatalf("expected window closed once runs_count reaches max_runs")
	}
}

func TestNext_Cron_EveryFiveMinutes(t *testing.T) {
	start := mustParse(t, "2026-01-01T12:00:00Z")
	s := &domain.Schedule{Type: domain.ScheduleTypeCron, CronExpression: "*/5 * * * *", StartAt: start}

	got, ok, err := trigger.Next(s, start)
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", got, ok, err)
	}
	want := mustParse(t, "2026-01-01T12:05:00Z")
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNext_Cron_RespectsStartAtEvenIfAfterIsEarlier(t *testing.T) {
	start := mustParse(t, "2026-01-01T12:07:00Z")
	s := &domain.Schedule{Type: domain.ScheduleTypeCron, CronExpression: "*/5 * * * *", StartAt: start}

	got, ok, err := trigger.Next(s, start.Add(-time.Hour))
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", got, ok, err)
	}
	want := mustParse(t, "2026-01-01T12:10:00Z")
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNext_Cron_InvalidExpression(t *testing.T) {
	s := &domain.Schedule{Type: domain.ScheduleTypeCron, CronExpression: "not a cron expr", StartAt: time.Now()}

	_, _, err := trigger.Next(s, time.Now())
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
