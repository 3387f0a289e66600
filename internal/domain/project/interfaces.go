package project

import (
	"context"

	"github.com/rpggio/fieldlog/internal/domain/activity"
)

// Repository provides persistence for projects and their per-method progress rows.
type Repository interface {
	Create(ctx context.Context, proj *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context, opts ListOptions) ([]Project, error)
	Count(ctx context.Context, opts ListOptions) (int, error)
	// UpdateTotals sets total_points for the given methods. The update is guarded by
	// completed_points <= total; a rejected guard yields repository.ErrGuardRejected.
	UpdateTotals(ctx context.Context, id string, totals map[Method]int64) (*Project, error)
}

// ActivityRepository logs project activities.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
