package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/repository"
)

// EmployeeRepository implements employee.Repository for SQLite
type EmployeeRepository struct {
	db *DB
}

// NewEmployeeRepository creates a new EmployeeRepository
func NewEmployeeRepository(db *DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create inserts an employee
func (r *EmployeeRepository) Create(ctx context.Context, emp *employee.Employee) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO employees (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		emp.ID, emp.UserID, emp.Name, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", translateError(err))
	}
	return nil
}

// Get retrieves an employee by ID
func (r *EmployeeRepository) Get(ctx context.Context, id string) (*employee.Employee, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUserID retrieves the employee owned by a user identity
func (r *EmployeeRepository) GetByUserID(ctx context.Context, userID string) (*employee.Employee, error) {
	return r.getBy(ctx, "user_id", userID)
}

func (r *EmployeeRepository) getBy(ctx context.Context, column, value string) (*employee.Employee, error) {
	var emp employee.Employee
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name FROM employees WHERE `+column+` = ?`, value,
	).Scan(&emp.ID, &emp.UserID, &emp.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &emp, nil
}
