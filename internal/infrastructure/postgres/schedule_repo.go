package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		INSERT INTO schedules (
			name, target_id, schedule_type, interval_seconds, cron_expression,
			start_at, duration_seconds, max_runs, status, runs_count, next_run_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)
		RETURNING id, name, target_id, schedule_type, interval_seconds, cron_expression,
		          start_at, duration_seconds, max_runs, status, runs_count, next_run_at,
		          created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		s.Name, s.TargetID, s.Type, nullableInt(s.IntervalSeconds, s.Type != domain.ScheduleTypeInterval),
		nullableStr(s.CronExpression, s.Type != domain.ScheduleTypeCron),
		s.StartAt, s.DurationSeconds, s.MaxRuns, s.Status, s.NextRunAt,
	)

	created, err := scanSchedule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrScheduleNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	query := `
		SELECT id, name, target_id, schedule_type, interval_seconds, cron_expression,
		       start_at, duration_seconds, max_runs, status, runs_count, next_run_at,
		       created_at, updated_at
		FROM schedules WHERE id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

func (r *ScheduleRepository) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT id, name, target_id, schedule_type, interval_seconds, cron_expression,
		       start_at, duration_seconds, max_runs, status, runs_count, next_run_at,
		       created_at, updated_at
		FROM schedules
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *ScheduleRepository) ListByTargetID(ctx context.Context, targetID string) ([]*domain.Schedule, error) {
	query := `
		SELECT id, name, target_id, schedule_type, interval_seconds, cron_expression,
		       start_at, duration_seconds, max_runs, status, runs_count, next_run_at,
		       created_at, updated_at
		FROM schedules WHERE target_id = $1`

	rows, err := r.pool.Query(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("list schedules by target: %w", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *ScheduleRepository) ListActive(ctx context.Context) ([]*domain.Schedule, error) {
	query := `
		SELECT id, name, target_id, schedule_type, interval_seconds, cron_expression,
		       start_at, duration_seconds, max_runs, status, runs_count, next_run_at,
		       created_at, updated_at
		FROM schedules WHERE status = $1`

	rows, err := r.pool.Query(ctx, query, domain.ScheduleActive)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status domain.ScheduleStatus, fields repository.ScheduleStatusFields) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET status = $2,
		    next_run_at = COALESCE($3, next_run_at),
		    runs_count  = COALESCE($4, runs_count),
		    updated_at  = NOW()
		WHERE id = $1`,
		id, status, fields.NextRunAt, fields.RunsCount)
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) IncrementRunsCount(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE schedules SET runs_count = runs_count + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment runs_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func nullableInt(v int, null bool) *int {
	if null {
		return nil
	}
	return &v
}

func nullableStr(v string, null bool) *string {
	if null {
		return nil
	}
	return &v
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var s domain.Schedule
	var intervalSeconds *int
	var cronExpr *string
	err := row.Scan(
		&s.ID, &s.Name, &s.TargetID, &s.Type, &intervalSeconds, &cronExpr,
		&s.StartAt, &s.DurationSeconds, &s.MaxRuns, &s.Status, &s.RunsCount, &s.NextRunAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	if intervalSeconds != nil {
		s.IntervalSeconds = *intervalSeconds
	}
	if cronExpr != nil {
		s.CronExpression = *cronExpr
	}
	return &s, nil
}
