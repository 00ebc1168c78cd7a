package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/alimgiray/ideabase/internal/models"
)

// JobRepository handles database operations for jobs
type JobRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, job_type, status, project_id, language, payload, result, error_message,
	worker_id, started_at, completed_at, created_at, updated_at`

// Create creates a new job
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO jobs (id, job_type, status, project_id, language, payload, result, error_message,
			worker_id, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	job.CreatedAt = dbTime(job.CreatedAt)
	job.UpdatedAt = dbTime(job.UpdatedAt)

	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.JobType,
		job.Status,
		job.ProjectID,
		job.Language,
		job.Payload,
		job.Result,
		job.ErrorMessage,
		job.WorkerID,
		dbTimePtr(job.StartedAt),
		dbTimePtr(job.CompletedAt),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	return scanJob(r.db.QueryRowContext(ctx, query, id))
}

// ClaimNext atomically takes the oldest pending job of jobType and marks it
// in progress for workerID. It returns nil when the queue is empty.
func (r *JobRepository) ClaimNext(ctx context.Context, jobType models.JobType, workerID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = ? AND job_type = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT 1
	`
	job, err := scanJob(tx.QueryRowContext(ctx, query, models.JobStatusPending, jobType))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.MarkStarted(workerID)
	job.UpdatedAt = dbTime(time.Now())
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, worker_id = ?, started_at = ?, updated_at = ?
		WHERE id = ?
	`, job.Status, job.WorkerID, dbTimePtr(job.StartedAt), job.UpdatedAt, job.ID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

// Update persists the mutable fields of a job
func (r *JobRepository) Update(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job.UpdatedAt = dbTime(time.Now())
	query := `
		UPDATE jobs
		SET status = ?, result = ?, error_message = ?, worker_id = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.Result,
		job.ErrorMessage,
		job.WorkerID,
		dbTimePtr(job.StartedAt),
		dbTimePtr(job.CompletedAt),
		job.UpdatedAt,
		job.ID,
	)
	return err
}

// HasActiveAnalysis reports whether a pending or in-progress analyze job exists for the key
func (r *JobRepository) HasActiveAnalysis(ctx context.Context, projectID int64, language string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE job_type = ? AND project_id = ? AND language = ? AND status IN (?, ?)
		)
	`, models.JobTypeAnalyze, projectID, language, models.JobStatusPending, models.JobStatusInProgress).Scan(&exists)
	return exists, err
}

// HasActiveOfType reports whether any pending or in-progress job of jobType exists
func (r *JobRepository) HasActiveOfType(ctx context.Context, jobType models.JobType) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM jobs WHERE job_type = ? AND status IN (?, ?))
	`, jobType, models.JobStatusPending, models.JobStatusInProgress).Scan(&exists)
	return exists, err
}

// CountByStatus returns job counts of jobType keyed by status
func (r *JobRepository) CountByStatus(ctx context.Context, jobType models.JobType) (map[models.JobStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs WHERE job_type = ? GROUP BY status`, jobType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// ResetStuck returns in-progress jobs to pending. Called at startup, when no
// worker of this process can still own them.
func (r *JobRepository) ResetStuck(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, worker_id = NULL, started_at = NULL, updated_at = ?
		WHERE status = ?
	`, models.JobStatusPending, dbTime(time.Now()), models.JobStatusInProgress)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanJob(row rowScanner) (*models.Job, error) {
	job := &models.Job{}
	err := row.Scan(
		&job.ID,
		&job.JobType,
		&job.Status,
		&job.ProjectID,
		&job.Language,
		&job.Payload,
		&job.Result,
		&job.ErrorMessage,
		&job.WorkerID,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}
