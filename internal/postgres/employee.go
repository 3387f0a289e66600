package postgres

import (
	"context"
	"fmt"

	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/repository"
)

// EmployeeRepository implements employee.Repository for PostgreSQL
type EmployeeRepository struct {
	db *DB
}

// NewEmployeeRepository creates a new EmployeeRepository
func NewEmployeeRepository(db *DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create inserts an employee
func (r *EmployeeRepository) Create(ctx context.Context, emp *employee.Employee) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO employees (id, user_id, name) VALUES ($1, $2, $3)`,
		emp.ID, emp.UserID, emp.Name)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", translateError(err))
	}
	return nil
}

// Get retrieves an employee by ID
func (r *EmployeeRepository) Get(ctx context.Context, id string) (*employee.Employee, error) {
	return r.getBy(ctx, `SELECT id, user_id, name FROM employees WHERE id = $1`, id)
}

// GetByUserID retrieves the employee owned by a user identity
func (r *EmployeeRepository) GetByUserID(ctx context.Context, userID string) (*employee.Employee, error) {
	return r.getBy(ctx, `SELECT id, user_id, name FROM employees WHERE user_id = $1`, userID)
}

func (r *EmployeeRepository) getBy(ctx context.Context, query, value string) (*employee.Employee, error) {
	var emp employee.Employee
	err := r.db.Pool.QueryRow(ctx, query, value).Scan(&emp.ID, &emp.UserID, &emp.Name)
	if isNoRows(err) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &emp, nil
}
