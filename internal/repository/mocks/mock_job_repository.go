package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"hydroproc/internal/model"
	"hydroproc/internal/repository"
)

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *model.Job, artifacts []model.Artifact) error {
	args := m.Called(ctx, job, artifacts)
	return args.Error(0)
}

func (m *MockJobRepository) FindByID(ctx context.Context, id string) (*model.Job, []model.Artifact, error) {
	args := m.Called(ctx, id)
	var job *model.Job
	if args.Get(0) != nil {
		job = args.Get(0).(*model.Job)
	}
	var arts []model.Artifact
	if args.Get(1) != nil {
		arts = args.Get(1).([]model.Artifact)
	}
	return job, arts, args.Error(2)
}

func (m *MockJobRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Job], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Job]), args.Error(1)
}

func (m *MockJobRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
