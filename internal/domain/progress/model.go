package progress

import (
	"math"
	"time"

	"github.com/rpggio/fieldlog/internal/domain/project"
)

// Item is one survey method line of a daily report.
type Item struct {
	Method       project.Method `json:"method"`
	PointsDone   int64          `json:"points_done"`
	DepthReached float64        `json:"depth_reached"`
}

// Record is the report of one employee, for one project, on one local date.
type Record struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	LocalDate  string    `json:"local_date"`
	Notes      string    `json:"notes"`
	Items      []Item    `json:"items"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key identifies a record: at most one exists per project, author and date.
type Key struct {
	ProjectID string
	AuthorID  string
	LocalDate string
}

// Key returns the unique key of r.
func (r *Record) Key() Key {
	return Key{ProjectID: r.ProjectID, AuthorID: r.AuthorID, LocalDate: r.LocalDate}
}

// Tally is the per-method summary of a set of items.
type Tally struct {
	Points   int64
	DepthMax float64
}

// TallyItems sums points and takes the deepest reading per method. Point sums
// saturate at math.MaxInt64 instead of wrapping.
func TallyItems(items []Item) map[project.Method]Tally {
	out := make(map[project.Method]Tally, len(project.Methods))
	for _, it := range items {
		t := out[it.Method]
		if it.PointsDone > math.MaxInt64-t.Points {
			t.Points = math.MaxInt64
		} else {
			t.Points += it.PointsDone
		}
		if it.DepthReached > t.DepthMax {
			t.DepthMax = it.DepthReached
		}
		out[it.Method] = t
	}
	return out
}

// Result is the outcome of a ledger operation together with the project snapshot
// taken in the same transaction.
type Result struct {
	Record          *Record          `json:"data"`
	ProjectProgress project.Progress `json:"project_progress"`
	StartDate       string           `json:"start_date"`
	EndDate         *string          `json:"end_date"`

	// Recomputed lists methods whose max depth was rebuilt from surviving records.
	Recomputed []project.Method `json:"-"`
}

// SearchResult is a record matched by a notes search.
type SearchResult struct {
	Record
	Snippet string `json:"snippet,omitempty"`
}

func newResult(rec *Record, proj *project.Project, recomputed []project.Method) *Result {
	return &Result{
		Record:          rec,
		ProjectProgress: proj.Progress.Snapshot(),
		StartDate:       proj.StartDate,
		EndDate:         proj.EndDate,
		Recomputed:      recomputed,
	}
}
