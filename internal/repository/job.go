// Package repository contains the data access layer. Implementations live in
// subpackages (e.g. postgres) inside this directory.
package repository

import (
	"context"

	"hydroproc/internal/model"
)

// JobRepository defines persistence for process executions and their
// artifact records. SQL only, no business logic.
type JobRepository interface {
	// Create inserts the job row and its artifact rows atomically.
	Create(ctx context.Context, job *model.Job, artifacts []model.Artifact) error

	// FindByID returns a job with its artifacts, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Job, []model.Artifact, error)

	// List returns a page of jobs, newest first, without artifacts.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Job], error)

	// Delete removes a job row; artifact rows follow by cascade. Deleting a
	// missing job is not an error.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
