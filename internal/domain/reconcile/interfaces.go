package reconcile

import (
	"context"

	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/project"
)

// Store runs reconciliation work against the ledger tables.
type Store interface {
	ListProjectIDs(ctx context.Context) ([]string, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view used by reconciliation.
type Tx interface {
	GetProject(ctx context.Context, projectID string) (*project.Project, error)
	// Actuals sums points_done and takes the deepest depth_reached per method over
	// the project's surviving records.
	Actuals(ctx context.Context, projectID string) (map[project.Method]Actual, error)
	// SetProgress overwrites completed_points and max_depth per method.
	SetProgress(ctx context.Context, projectID string, values map[project.Method]Actual) error
}

// ActivityRepository logs repairs.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
