package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arosnov/schedhook/internal/metrics"
	"github.com/arosnov/schedhook/internal/repository"
)

// Recover runs the one-shot startup reconciliation: every Run left
// pending or running by a prior crash is failed conservatively, then
// every active Schedule is rearmed. It must complete before the HTTP
// server starts accepting traffic and before sch.Run is driven by live
// events — a single pass is enough because this process owns every
// in-flight Run itself and only ever observes a crash by being the
// restart.
func Recover(ctx context.Context, sch *Scheduler, runs repository.RunRepository, schedules repository.ScheduleRepository, logger *slog.Logger) error {
	logger = logger.With("component", "recovery")

	failed, err := runs.BulkFailInFlight(ctx)
	if err != nil {
		return fmt.Errorf("recovery: bulk fail in-flight runs: %w", err)
	}
	if failed > 0 {
		logger.WarnContext(ctx, "orphaned runs failed on recovery", "count", failed)
	}
	metrics.RecoveryOrphanedRunsTotal.Add(float64(failed))

	active, err := schedules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("recovery: list active schedules: %w", err)
	}
	for _, s := range active {
		sch.OnScheduleCreated(s)
	}
	metrics.RecoveryRearmedSchedulesTotal.Add(float64(len(active)))
	logger.InfoContext(ctx, "rearmed active schedules", "count", len(active))

	return nil
}
