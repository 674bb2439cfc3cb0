package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trustlens_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobNotFoundMsg = "verification job not found"

// Job statuses in the relational ledger. The ledger records submission and
// terminal outcome; intermediate pipeline progress lives on the media
// document, not here.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Repository provides database operations for verification jobs.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new verification job repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Job is one verification job ledger row. MediaID links the row to its media
// document in the document store.
type Job struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	MediaID     string
	FileType    string
	Status      string
	ResultReady bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Create inserts a new job row.
func (r *Repository) Create(ctx context.Context, job Job) (Job, error) {
	query := `
		INSERT INTO verification_jobs (
			id, user_id, media_id, file_type, status, result_ready, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.MediaID,
		job.FileType,
		job.Status,
		job.ResultReady,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return Job{}, fmt.Errorf("create verification job: %w", err)
	}

	return job, nil
}

// GetByID fetches a job scoped to its owner. A job belonging to another user
// is indistinguishable from a missing one.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, userID uuid.UUID) (Job, error) {
	query := `
		SELECT id, user_id, media_id, file_type, status, result_ready, created_at, updated_at, completed_at
		FROM verification_jobs
		WHERE id = $1 AND user_id = $2
	`

	var job Job
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&job.ID,
		&job.UserID,
		&job.MediaID,
		&job.FileType,
		&job.Status,
		&job.ResultReady,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, apperr.NotFound(jobNotFoundMsg)
		}
		return Job{}, fmt.Errorf("get verification job: %w", err)
	}

	return job, nil
}

// ListByUser returns the user's jobs, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, user_id, media_id, file_type, status, result_ready, created_at, updated_at, completed_at
		FROM verification_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list verification jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(
			&job.ID,
			&job.UserID,
			&job.MediaID,
			&job.FileType,
			&job.Status,
			&job.ResultReady,
			&job.CreatedAt,
			&job.UpdatedAt,
			&job.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan verification job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// MarkCompletedByMediaID records terminal success for the job owning a media
// document: status completed, result_ready true. Re-marking an already
// completed job is a no-op update with the same values, so finalize retries
// converge.
func (r *Repository) MarkCompletedByMediaID(ctx context.Context, mediaID string) error {
	return r.markStatusByMediaID(ctx, mediaID, StatusCompleted, true)
}

// MarkFailedByMediaID records terminal failure for the job owning a media
// document. The result is never ready for a failed job.
func (r *Repository) MarkFailedByMediaID(ctx context.Context, mediaID string) error {
	return r.markStatusByMediaID(ctx, mediaID, StatusFailed, false)
}

func (r *Repository) markStatusByMediaID(ctx context.Context, mediaID, status string, resultReady bool) error {
	query := `
		UPDATE verification_jobs
		SET status = $2,
			result_ready = $3,
			updated_at = now(),
			completed_at = CASE WHEN $3 THEN COALESCE(completed_at, now()) ELSE completed_at END
		WHERE media_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, mediaID, status, resultReady)
	if err != nil {
		return fmt.Errorf("mark verification job %s: %w", status, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(jobNotFoundMsg)
	}
	return nil
}
