package progress

import (
	"context"

	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/project"
)

// Ledger runs a unit of work in one store transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the transactional view used by ledger operations. Missing rows are
// reported as repository.ErrNotFound.
type LedgerTx interface {
	// GetProject loads the project and holds it for the rest of the transaction.
	GetProject(ctx context.Context, projectID string) (*project.Project, error)
	FindRecord(ctx context.Context, key Key) (*Record, error)
	// InsertRecord stores a new record; a duplicate key yields repository.ErrConflict.
	InsertRecord(ctx context.Context, rec *Record) error
	// ReplaceRecord overwrites notes and items of an existing record.
	ReplaceRecord(ctx context.Context, rec *Record) error
	DeleteRecord(ctx context.Context, id string) error
	// ApplyIncrement adds inc to completed_points and raises max_depth to
	// maxCandidate, per method. A method whose result would leave [0, total_points]
	// rejects the whole call with repository.ErrGuardRejected.
	ApplyIncrement(ctx context.Context, projectID string, inc map[project.Method]int64, maxCandidate map[project.Method]float64) error
	// MaxDepth returns the deepest surviving depth_reached per method, 0 when none.
	MaxDepth(ctx context.Context, projectID string, methods []project.Method) (map[project.Method]float64, error)
	SetMaxDepth(ctx context.Context, projectID string, depths map[project.Method]float64) error
}

// RecordRepository reads records outside of a ledger transaction.
type RecordRepository interface {
	Get(ctx context.Context, key Key) (*Record, error)
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Count(ctx context.Context, opts ListOptions) (int, error)
}

// SearchRepository performs full-text search over record notes.
type SearchRepository interface {
	Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error)
}

// EmployeeResolver maps an actor identity to an employee id.
type EmployeeResolver interface {
	Resolve(ctx context.Context, actorID string) (string, error)
}

// ProjectReader loads projects.
type ProjectReader interface {
	Get(ctx context.Context, id string) (*project.Project, error)
}

// ActivityLogger logs ledger activities.
type ActivityLogger interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
