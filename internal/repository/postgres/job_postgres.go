package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"hydroproc/internal/model"
	"hydroproc/internal/repository"
)

// JobPostgres is a PostgreSQL implementation of repository.JobRepository.
// It uses database/sql with parameterized queries and contains no business
// logic.
type JobPostgres struct {
	db *sql.DB
}

// NewJobPostgres creates a new JobPostgres repository.
func NewJobPostgres(db *sql.DB) *JobPostgres {
	return &JobPostgres{db: db}
}

var _ repository.JobRepository = (*JobPostgres)(nil)

// Create inserts the job and its artifacts inside one transaction.
func (r *JobPostgres) Create(ctx context.Context, job *model.Job, artifacts []model.Artifact) error {
	inputs, err := json.Marshal(job.Inputs)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const qJob = `
		INSERT INTO jobs (id, process_id, status, message, inputs, duration_ms, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.ExecContext(ctx, qJob,
		job.ID,
		job.ProcessID,
		job.Status,
		job.Message,
		inputs,
		job.DurationMS,
		job.CreatedAt,
		job.FinishedAt,
	); err != nil {
		return err
	}

	const qArt = `
		INSERT INTO artifacts (job_id, name, storage_key, media_type, size)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, a := range artifacts {
		if _, err := tx.ExecContext(ctx, qArt, a.JobID, a.Name, a.StorageKey, a.MediaType, a.Size); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FindByID fetches a single job and its artifact rows.
func (r *JobPostgres) FindByID(ctx context.Context, id string) (*model.Job, []model.Artifact, error) {
	const qJob = `
		SELECT id, process_id, status, message, inputs, duration_ms, created_at, finished_at
		FROM jobs
		WHERE id = $1
	`
	j, err := scanJob(r.db.QueryRowContext(ctx, qJob, id))
	if err != nil {
		return nil, nil, err
	}

	const qArt = `
		SELECT job_id, name, storage_key, media_type, size
		FROM artifacts
		WHERE job_id = $1
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, qArt, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	arts := make([]model.Artifact, 0)
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.JobID, &a.Name, &a.StorageKey, &a.MediaType, &a.Size); err != nil {
			return nil, nil, err
		}
		arts = append(arts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return j, arts, nil
}

// List returns jobs using LIMIT/OFFSET pagination and a total count.
func (r *JobPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Job], error) {
	const qCount = `SELECT COUNT(*) FROM jobs`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, process_id, status, message, inputs, duration_ms, created_at, finished_at
		FROM jobs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Job]{Items: items, Total: total}, nil
}

// Delete removes a job by ID. Artifact rows go with it by cascade.
func (r *JobPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM jobs WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	var inputs []byte
	if err := row.Scan(
		&j.ID,
		&j.ProcessID,
		&j.Status,
		&j.Message,
		&inputs,
		&j.DurationMS,
		&j.CreatedAt,
		&j.FinishedAt,
	); err != nil {
		return nil, err
	}
	if len(inputs) > 0 {
		if err := json.Unmarshal(inputs, &j.Inputs); err != nil {
			return nil, err
		}
	}
	return &j, nil
}
