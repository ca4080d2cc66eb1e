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

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	query := `
		INSERT INTO runs (schedule_id, target_id, scheduled_at, status, idempotency_key, attempt_count)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING id, schedule_id, target_id, scheduled_at, started_at, completed_at,
		          status, idempotency_key, attempt_count, final_error, created_at`

	row := r.pool.QueryRow(ctx, query, run.ScheduleID, run.TargetID, run.ScheduledAt, run.Status, run.IdempotencyKey)

	created, err := scanRun(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateRun
		}
		return nil, err
	}
	return created, nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	query := `
		SELECT id, schedule_id, target_id, scheduled_at, started_at, completed_at,
		       status, idempotency_key, attempt_count, final_error, created_at
		FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

func (r *RunRepository) List(ctx context.Context, input repository.ListRunsInput) ([]*domain.Run, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.ScheduleID != "" {
		args = append(args, input.ScheduleID)
		where = append(where, fmt.Sprintf("schedule_id = $%d", len(args)))
	}
	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(scheduled_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT id, schedule_id, target_id, scheduled_at, started_at, completed_at,
		       status, idempotency_key, attempt_count, final_error, created_at
		FROM runs
		WHERE %s
		ORDER BY scheduled_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (r *RunRepository) CountInFlight(ctx context.Context, scheduleID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM runs
		WHERE schedule_id = $1 AND status IN ($2, $3)`,
		scheduleID, domain.RunPending, domain.RunRunning,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count in-flight runs: %w", err)
	}
	return count, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, id string, status domain.RunStatus, fields repository.RunStatusFields) error {
	// Allowed transitions: pending -> running, pending/running -> terminal.
	fromA, fromB := domain.RunPending, domain.RunPending
	if status.Terminal() {
		fromB = domain.RunRunning
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status = $2,
		    started_at    = COALESCE($3, started_at),
		    completed_at  = COALESCE($4, completed_at),
		    attempt_count = COALESCE($5, attempt_count),
		    final_error   = COALESCE($6, final_error)
		WHERE id = $1 AND status IN ($7, $8)`,
		id, status, fields.StartedAt, fields.CompletedAt, fields.AttemptCount, fields.FinalError, fromA, fromB)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w, or its status does not allow a move to %s", domain.ErrRunNotFound, status)
	}
	return nil
}

func (r *RunRepository) BulkFailInFlight(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status = $1, completed_at = NOW(), final_error = $2
		WHERE status IN ($3, $4)`,
		domain.RunFailed, domain.OrphanedError, domain.RunPending, domain.RunRunning)
	if err != nil {
		return 0, fmt.Errorf("bulk fail in-flight runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID, &run.ScheduleID, &run.TargetID, &run.ScheduledAt, &run.StartedAt, &run.CompletedAt,
		&run.Status, &run.IdempotencyKey, &run.AttemptCount, &run.FinalError, &run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}
