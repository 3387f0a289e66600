package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpggio/fieldlog/internal/repository"
)

// Service resolves actor identities to employees.
type Service struct {
	repo Repository
}

// NewService creates a new employee service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve returns the employee id owned by actorID.
func (s *Service) Resolve(ctx context.Context, actorID string) (string, error) {
	if strings.TrimSpace(actorID) == "" {
		return "", ErrUnauthenticated
	}
	emp, err := s.repo.GetByUserID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrEmployeeNotFound
		}
		return "", fmt.Errorf("resolving employee: %w", err)
	}
	return emp.ID, nil
}

// Get fetches an employee by ID.
func (s *Service) Get(ctx context.Context, id string) (*Employee, error) {
	emp, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("getting employee: %w", err)
	}
	return emp, nil
}
