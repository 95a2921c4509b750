package export

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/models"
)

// Repository handles the exports table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an exports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending export and fills in its id and creation time.
func (r *Repository) Create(ctx context.Context, e *models.Export) error {
	const query = `INSERT INTO exports (id, session_id, format, status)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	e.Status = models.ExportPending
	err := r.pool.QueryRow(ctx, query, e.SessionID, e.Format, e.Status).Scan(&e.ID, &e.CreatedAt)
	return apperr.Store("create export", err)
}

// GetByID returns an export or apperr.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	const query = `SELECT id, session_id, format, status, object_key, error, created_at, completed_at
		FROM exports WHERE id = $1`
	var e models.Export
	err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.SessionID, &e.Format, &e.Status, &e.ObjectKey, &e.Error, &e.CreatedAt, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Store("get export", err)
	}
	return &e, nil
}

// MarkProcessing records that a worker picked the export up.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE exports SET status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, models.ExportProcessing)
	return apperr.Store("mark export processing", err)
}

// MarkCompleted records the uploaded object key.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, objectKey string) error {
	const query = `UPDATE exports SET status = $2, object_key = $3, error = NULL, completed_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, models.ExportCompleted, objectKey)
	return apperr.Store("mark export completed", err)
}

// MarkFailed records a terminal failure.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const query = `UPDATE exports SET status = $2, error = $3, completed_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, models.ExportFailed, reason)
	return apperr.Store("mark export failed", err)
}
