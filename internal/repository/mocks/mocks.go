package mocks

import (
	"context"

	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/stretchr/testify/mock"
)

// ProjectRepository is a mock for project.Repository.
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	args := m.Called(ctx, proj)
	return args.Error(0)
}

func (m *ProjectRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	args := m.Called(ctx, id)
	if proj, ok := args.Get(0).(*project.Project); ok {
		return proj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) List(ctx context.Context, opts project.ListOptions) ([]project.Project, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]project.Project); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) Count(ctx context.Context, opts project.ListOptions) (int, error) {
	args := m.Called(ctx, opts)
	return args.Int(0), args.Error(1)
}

func (m *ProjectRepository) UpdateTotals(ctx context.Context, id string, totals map[project.Method]int64) (*project.Project, error) {
	args := m.Called(ctx, id, totals)
	if proj, ok := args.Get(0).(*project.Project); ok {
		return proj, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// EmployeeRepository is a mock for employee.Repository.
type EmployeeRepository struct {
	mock.Mock
}

func (m *EmployeeRepository) Get(ctx context.Context, id string) (*employee.Employee, error) {
	args := m.Called(ctx, id)
	if emp, ok := args.Get(0).(*employee.Employee); ok {
		return emp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EmployeeRepository) GetByUserID(ctx context.Context, userID string) (*employee.Employee, error) {
	args := m.Called(ctx, userID)
	if emp, ok := args.Get(0).(*employee.Employee); ok {
		return emp, args.Error(1)
	}
	return nil, args.Error(1)
}

// EmployeeResolver is a mock for progress.EmployeeResolver.
type EmployeeResolver struct {
	mock.Mock
}

func (m *EmployeeResolver) Resolve(ctx context.Context, actorID string) (string, error) {
	args := m.Called(ctx, actorID)
	return args.String(0), args.Error(1)
}

// SearchRepository is a mock for progress.SearchRepository.
type SearchRepository struct {
	mock.Mock
}

func (m *SearchRepository) Search(ctx context.Context, opts progress.SearchOptions) ([]progress.SearchResult, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]progress.SearchResult); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
