package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"hydroproc/internal/service"
)

type MockExecutionService struct {
	mock.Mock
}

func (m *MockExecutionService) Execute(ctx context.Context, processID string, literals map[string]string, uploads []service.Upload, refs map[string]string) (*service.JobDetail, error) {
	args := m.Called(ctx, processID, literals, uploads, refs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JobDetail), args.Error(1)
}

func (m *MockExecutionService) Get(ctx context.Context, id string) (*service.JobDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JobDetail), args.Error(1)
}

func (m *MockExecutionService) List(ctx context.Context, limit, offset int) (*service.JobListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JobListResult), args.Error(1)
}

func (m *MockExecutionService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockExecutionService) ArtifactURL(ctx context.Context, jobID, name string) (string, error) {
	args := m.Called(ctx, jobID, name)
	return args.String(0), args.Error(1)
}
