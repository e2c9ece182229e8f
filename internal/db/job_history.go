package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/preflight-agent/internal/types"
)

// -----------------------------------------------------------------------------
// Job History Methods
// -----------------------------------------------------------------------------

const jobColumns = `id, job_id, remote_id, kind, status, progress, result_id, download_url,
	error_message, created_at, updated_at, finished_at`

// RecordJob upserts the latest snapshot of a job. It satisfies jobs.Recorder.
func (db *DB) RecordJob(ctx context.Context, job types.Job) error {
	rec := recordFromJob(job)
	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_history (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (job_id) DO UPDATE
		 SET status = EXCLUDED.status, progress = EXCLUDED.progress,
		     result_id = COALESCE(EXCLUDED.result_id, job_history.result_id),
		     download_url = COALESCE(EXCLUDED.download_url, job_history.download_url),
		     error_message = EXCLUDED.error_message, updated_at = EXCLUDED.updated_at,
		     finished_at = COALESCE(job_history.finished_at, EXCLUDED.finished_at)`,
		rec.ID, rec.JobID, rec.RemoteID, rec.Kind, rec.Status, rec.Progress, rec.ResultID, rec.DownloadURL,
		rec.ErrorMessage, rec.CreatedAt, rec.UpdatedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob retrieves a job record by job ID. Returns nil when there is none.
func (db *DB) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM job_history WHERE job_id = $1`,
		jobID,
	)
	rec, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return rec, nil
}

// ListJobs retrieves recent job records, newest first.
func (db *DB) ListJobs(ctx context.Context, filters JobFilters) ([]JobRecord, error) {
	query, args := buildListJobsQuery(filters)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// DeleteJobsBefore removes finished jobs last updated before cutoff and returns
// how many rows were removed.
func (db *DB) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM job_history WHERE finished_at IS NOT NULL AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

func buildListJobsQuery(filters JobFilters) (string, []any) {
	if filters.Limit <= 0 {
		filters.Limit = DefaultListLimit
	}

	query := `SELECT ` + jobColumns + ` FROM job_history WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argNum)
		args = append(args, filters.Kind)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)
	return query, args
}

func scanJob(row pgx.Row) (*JobRecord, error) {
	var rec JobRecord
	err := row.Scan(&rec.ID, &rec.JobID, &rec.RemoteID, &rec.Kind, &rec.Status, &rec.Progress,
		&rec.ResultID, &rec.DownloadURL, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// recordFromJob maps a job snapshot to a row. The row ID is derived from the local
// job key, which includes the kind, so repeated snapshots of one job share it.
func recordFromJob(job types.Job) JobRecord {
	rec := JobRecord{
		ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("job:"+job.ID)),
		JobID:     job.ID,
		RemoteID:  job.RemoteID,
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		Progress:  job.Progress,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.ResultID != "" {
		rec.ResultID = &job.ResultID
	}
	if job.DownloadURL != "" {
		rec.DownloadURL = &job.DownloadURL
	}
	if job.Error != "" {
		rec.ErrorMessage = &job.Error
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if job.IsTerminal() {
		finished := rec.UpdatedAt
		rec.FinishedAt = &finished
	}
	return rec
}

// Job converts the record back to a job snapshot.
func (r JobRecord) Job() types.Job {
	job := types.Job{
		ID:        r.JobID,
		RemoteID:  r.RemoteID,
		Kind:      types.JobKind(r.Kind),
		Status:    types.JobStatus(r.Status),
		Progress:  r.Progress,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ResultID != nil {
		job.ResultID = *r.ResultID
	}
	if r.DownloadURL != nil {
		job.DownloadURL = *r.DownloadURL
	}
	if r.ErrorMessage != nil {
		job.Error = *r.ErrorMessage
	}
	return job
}
