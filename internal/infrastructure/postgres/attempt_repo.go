package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arosnov/schedhook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) Create(ctx context.Context, a *domain.Attempt) (*domain.Attempt, error) {
	query := `
		INSERT INTO attempts (
			run_id, attempt_number, request_url, request_method, request_headers, request_body,
			response_status, response_headers, response_body, error_class, error_message,
			duration_ms, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, run_id, attempt_number, request_url, request_method, request_headers, request_body,
		          response_status, response_headers, response_body, error_class, error_message,
		          duration_ms, started_at, completed_at`

	row := r.pool.QueryRow(ctx, query,
		a.RunID, a.AttemptNumber, a.RequestURL, a.RequestMethod, a.RequestHeaders, a.RequestBody,
		a.ResponseStatus, a.ResponseHeaders, a.ResponseBody, a.ErrorClass, a.ErrorMessage,
		a.DurationMS, a.StartedAt, a.CompletedAt,
	)
	return scanAttempt(row)
}

func (r *AttemptRepository) ListByRunID(ctx context.Context, runID string) ([]*domain.Attempt, error) {
	query := `
		SELECT id, run_id, attempt_number, request_url, request_method, request_headers, request_body,
		       response_status, response_headers, response_body, error_class, error_message,
		       duration_ms, started_at, completed_at
		FROM attempts WHERE run_id = $1 ORDER BY attempt_number ASC`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func scanAttempt(row rowScanner) (*domain.Attempt, error) {
	var a domain.Attempt
	err := row.Scan(
		&a.ID, &a.RunID, &a.AttemptNumber, &a.RequestURL, &a.RequestMethod, &a.RequestHeaders, &a.RequestBody,
		&a.ResponseStatus, &a.ResponseHeaders, &a.ResponseBody, &a.ErrorClass, &a.ErrorMessage,
		&a.DurationMS, &a.StartedAt, &a.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("scan attempt: %w", pgx.ErrNoRows)
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	return &a, nil
}
