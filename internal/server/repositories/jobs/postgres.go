package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/dbx"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

const columns = `id, event_id, status, progress, total_files, processed_files, archives, error,
	created_at, expires_at, version`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new job with version 1.
func (r *PostgresRepository) Create(ctx context.Context, job *models.Job) error {
	archives, err := marshalArchives(job.Archives)
	if err != nil {
		return err
	}

	query := `INSERT INTO download_jobs (id, event_id, status, progress, total_files, processed_files, archives, error, created_at, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)`

	_, err = r.db.ExecContext(ctx, query, job.ID, job.EventID, string(job.Status), job.Progress,
		job.TotalFiles, job.ProcessedFiles, archives, job.Error, job.CreatedAt, job.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	job.Version = 1
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + columns + ` FROM download_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select job: %w", err)
	}
	return job, nil
}

// Update writes job if its Version still matches the stored row, and bumps
// Version on success. A stale job yields common.ErrVersionConflict.
func (r *PostgresRepository) Update(ctx context.Context, job *models.Job) error {
	archives, err := marshalArchives(job.Archives)
	if err != nil {
		return err
	}

	query := `UPDATE download_jobs SET status = $1, progress = $2, total_files = $3, processed_files = $4,
		archives = $5, error = $6, expires_at = $7, version = version + 1
		WHERE id = $8 AND version = $9`

	res, err := r.db.ExecContext(ctx, query, string(job.Status), job.Progress, job.TotalFiles,
		job.ProcessedFiles, archives, job.Error, job.ExpiresAt, job.ID, job.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.ExactlyOne(res); err != nil {
		return err
	}
	job.Version++
	return nil
}

// ListExpired returns every job whose expires_at is at or before now,
// whatever its status.
func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Job, error) {
	query := `SELECT ` + columns + ` FROM download_jobs WHERE expires_at <= $1 ORDER BY expires_at`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs: %w", err)
	}
	defer rows.Close()

	var result []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM download_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.Job, error) {
	var (
		job      models.Job
		status   string
		archives []byte
	)
	if err := s.Scan(&job.ID, &job.EventID, &status, &job.Progress, &job.TotalFiles, &job.ProcessedFiles,
		&archives, &job.Error, &job.CreatedAt, &job.ExpiresAt, &job.Version); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)

	if len(archives) > 0 {
		if err := json.Unmarshal(archives, &job.Archives); err != nil {
			return nil, fmt.Errorf("decode archives of job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}

func marshalArchives(a []models.ArchiveRef) ([]byte, error) {
	if a == nil {
		a = []models.ArchiveRef{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode archives: %w", err)
	}
	return b, nil
}
