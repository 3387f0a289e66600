package employee

import "context"

// Repository provides persistence for employees.
type Repository interface {
	Get(ctx context.Context, id string) (*Employee, error)
	GetByUserID(ctx context.Context, userID string) (*Employee, error)
}
