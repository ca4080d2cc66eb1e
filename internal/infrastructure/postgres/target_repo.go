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

type TargetRepository struct {
	pool *pgxpool.Pool
}

func NewTargetRepository(pool *pgxpool.Pool) *TargetRepository {
	return &TargetRepository{pool: pool}
}

func (r *TargetRepository) Create(ctx context.Context, t *domain.Target) (*domain.Target, error) {
	query := `
		INSERT INTO targets (name, url, method, headers, body_template, timeout_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, url, method, headers, body_template, timeout_seconds, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query, t.Name, t.URL, t.Method, t.Headers, t.BodyTemplate, t.TimeoutSeconds)

	created, err := scanTarget(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrTargetNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *TargetRepository) GetByID(ctx context.Context, id string) (*domain.Target, error) {
	query := `
		SELECT id, name, url, method, headers, body_template, timeout_seconds, created_at, updated_at
		FROM targets WHERE id = $1`
	return scanTarget(r.pool.QueryRow(ctx, query, id))
}

func (r *TargetRepository) List(ctx context.Context, input repository.ListTargetsInput) ([]*domain.Target, error) {
	args := []any{}
	where := []string{"TRUE"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT id, name, url, method, headers, body_template, timeout_seconds, created_at, updated_at
		FROM targets
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TargetRepository) Update(ctx context.Context, t *domain.Target) (*domain.Target, error) {
	query := `
		UPDATE targets
		SET name = $2, url = $3, method = $4, headers = $5, body_template = $6,
		    timeout_seconds = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, url, method, headers, body_template, timeout_seconds, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query, t.ID, t.Name, t.URL, t.Method, t.Headers, t.BodyTemplate, t.TimeoutSeconds)
	updated, err := scanTarget(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrTargetNameConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *TargetRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTargetNotFound
	}
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*domain.Target, error) {
	var t domain.Target
	err := row.Scan(&t.ID, &t.Name, &t.URL, &t.Method, &t.Headers, &t.BodyTemplate, &t.TimeoutSeconds, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTargetNotFound
		}
		return nil, fmt.Errorf("scan target: %w", err)
	}
	return &t, nil
}
