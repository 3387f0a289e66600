package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/domain/reconcile"
	"github.com/rpggio/fieldlog/internal/repository"
)

// Ledger implements progress.Ledger for PostgreSQL. GetProject locks the project
// row, so ledger transactions on one project run one after another.
type Ledger struct {
	db *DB
}

// NewLedger creates a new Ledger
func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

// WithinTx runs fn in a transaction, committing when it returns nil
func (l *Ledger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx progress.LedgerTx) error) error {
	return pgx.BeginFunc(ctx, l.db.Pool, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

// ReconcileStore implements reconcile.Store for PostgreSQL
type ReconcileStore struct {
	db       *DB
	projects *ProjectRepository
}

// NewReconcileStore creates a new ReconcileStore
func NewReconcileStore(db *DB) *ReconcileStore {
	return &ReconcileStore{db: db, projects: NewProjectRepository(db)}
}

// ListProjectIDs returns every project id
func (s *ReconcileStore) ListProjectIDs(ctx context.Context) ([]string, error) {
	return s.projects.ListProjectIDs(ctx)
}

// WithinTx runs fn in a transaction, committing when it returns nil
func (s *ReconcileStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx reconcile.Tx) error) error {
	return pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) GetProject(ctx context.Context, projectID string) (*project.Project, error) {
	return getProject(ctx, t.tx, projectID, true)
}

func (t *ledgerTx) FindRecord(ctx context.Context, key progress.Key) (*progress.Record, error) {
	return findRecord(ctx, t.tx, key)
}

func (t *ledgerTx) InsertRecord(ctx context.Context, rec *progress.Record) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO daily_progress (id, project_id, author_id, local_date, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		rec.ID,
		rec.ProjectID,
		rec.AuthorID,
		rec.LocalDate,
		rec.Notes,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert daily progress: %w", translateError(err))
	}
	return insertItems(ctx, t.tx, rec.ID, rec.Items)
}

func (t *ledgerTx) ReplaceRecord(ctx context.Context, rec *progress.Record) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE daily_progress SET notes = $1, updated_at = $2 WHERE id = $3`,
		rec.Notes, rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to replace daily progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM daily_progress_items WHERE record_id = $1`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	return insertItems(ctx, t.tx, rec.ID, rec.Items)
}

func (t *ledgerTx) DeleteRecord(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM daily_progress WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete daily progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) ApplyIncrement(ctx context.Context, projectID string, inc map[project.Method]int64, maxCandidate map[project.Method]float64) error {
	for _, m := range project.Methods {
		tag, err := t.tx.Exec(ctx, `
			UPDATE project_progress
			SET completed_points = completed_points + $1,
			    max_depth = GREATEST(max_depth, $2)
			WHERE project_id = $3 AND method = $4
			  AND completed_points + $1 BETWEEN 0 AND total_points
		`, inc[m], maxCandidate[m], projectID, string(m))
		if err != nil {
			return fmt.Errorf("failed to apply increment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrGuardRejected
		}
	}
	return touchProject(ctx, t.tx, projectID)
}

func (t *ledgerTx) MaxDepth(ctx context.Context, projectID string, methods []project.Method) (map[project.Method]float64, error) {
	out := make(map[project.Method]float64, len(methods))
	if len(methods) == 0 {
		return out, nil
	}
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
		out[m] = 0
	}

	rows, err := t.tx.Query(ctx, `
		SELECT i.method, MAX(i.depth_reached)
		FROM daily_progress_items i
		JOIN daily_progress d ON d.id = i.record_id
		WHERE d.project_id = $1 AND i.method = ANY($2)
		GROUP BY i.method`, projectID, names)
	if err != nil {
		return nil, fmt.Errorf("failed to compute max depth: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			method string
			depth  float64
		)
		if err := rows.Scan(&method, &depth); err != nil {
			return nil, fmt.Errorf("failed to scan max depth: %w", err)
		}
		out[project.Method(method)] = depth
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating max depth rows: %w", err)
	}
	return out, nil
}

func (t *ledgerTx) SetMaxDepth(ctx context.Context, projectID string, depths map[project.Method]float64) error {
	for _, m := range project.Methods {
		depth, ok := depths[m]
		if !ok {
			continue
		}
		_, err := t.tx.Exec(ctx,
			`UPDATE project_progress SET max_depth = $1 WHERE project_id = $2 AND method = $3`,
			depth, projectID, string(m))
		if err != nil {
			return fmt.Errorf("failed to set max depth: %w", err)
		}
	}
	return nil
}

func (t *ledgerTx) Actuals(ctx context.Context, projectID string) (map[project.Method]reconcile.Actual, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT i.method, COALESCE(SUM(i.points_done), 0)::BIGINT, COALESCE(MAX(i.depth_reached), 0)
		FROM daily_progress_items i
		JOIN daily_progress d ON d.id = i.record_id
		WHERE d.project_id = $1
		GROUP BY i.method`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily progress: %w", err)
	}
	defer rows.Close()

	out := make(map[project.Method]reconcile.Actual, len(project.Methods))
	for rows.Next() {
		var (
			method string
			a      reconcile.Actual
		)
		if err := rows.Scan(&method, &a.Points, &a.MaxDepth); err != nil {
			return nil, fmt.Errorf("failed to scan actuals: %w", err)
		}
		out[project.Method(method)] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actual rows: %w", err)
	}
	return out, nil
}

func (t *ledgerTx) SetProgress(ctx context.Context, projectID string, values map[project.Method]reconcile.Actual) error {
	for _, m := range project.Methods {
		a, ok := values[m]
		if !ok {
			continue
		}
		tag, err := t.tx.Exec(ctx, `
			UPDATE project_progress
			SET completed_points = $1, max_depth = $2
			WHERE project_id = $3 AND method = $4 AND $1 <= total_points
		`, a.Points, a.MaxDepth, projectID, string(m))
		if err != nil {
			return fmt.Errorf("failed to set progress: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrGuardRejected
		}
	}
	return touchProject(ctx, t.tx, projectID)
}
