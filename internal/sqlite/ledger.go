package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/domain/reconcile"
	"github.com/rpggio/fieldlog/internal/repository"
)

// Ledger implements progress.Ledger for SQLite
type Ledger struct {
	db *DB
}

// NewLedger creates a new Ledger
func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

// WithinTx runs fn in a transaction, committing when it returns nil
func (l *Ledger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx progress.LedgerTx) error) error {
	return withinTx(ctx, l.db, func(tx *ledgerTx) error { return fn(ctx, tx) })
}

// ReconcileStore implements reconcile.Store for SQLite
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
	return withinTx(ctx, s.db, func(tx *ledgerTx) error { return fn(ctx, tx) })
}

func withinTx(ctx context.Context, db *DB, fn func(tx *ledgerTx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ledgerTx serves both ledger operations and reconciliation.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) GetProject(ctx context.Context, projectID string) (*project.Project, error) {
	return getProject(ctx, t.tx, projectID)
}

func (t *ledgerTx) FindRecord(ctx context.Context, key progress.Key) (*progress.Record, error) {
	return findRecord(ctx, t.tx, key)
}

func (t *ledgerTx) InsertRecord(ctx context.Context, rec *progress.Record) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO daily_progress (id, project_id, author_id, local_date, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.ProjectID,
		rec.AuthorID,
		rec.LocalDate,
		rec.Notes,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert daily progress: %w", translateError(err))
	}
	return insertItems(ctx, t.tx, rec.ID, rec.Items)
}

func (t *ledgerTx) ReplaceRecord(ctx context.Context, rec *progress.Record) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE daily_progress SET notes = ?, updated_at = ? WHERE id = ?`,
		rec.Notes, formatTime(rec.UpdatedAt), rec.ID)
	if err != nil {
		return fmt.Errorf("failed to replace daily progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM daily_progress_items WHERE record_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	return insertItems(ctx, t.tx, rec.ID, rec.Items)
}

func (t *ledgerTx) DeleteRecord(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM daily_progress WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete daily progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) ApplyIncrement(ctx context.Context, projectID string, inc map[project.Method]int64, maxCandidate map[project.Method]float64) error {
	for _, m := range project.Methods {
		result, err := t.tx.ExecContext(ctx, `
			UPDATE project_progress
			SET completed_points = completed_points + ?,
			    max_depth = MAX(max_depth, ?)
			WHERE project_id = ? AND method = ?
			  AND completed_points + ? BETWEEN 0 AND total_points
		`, inc[m], maxCandidate[m], projectID, m, inc[m])
		if err != nil {
			return fmt.Errorf("failed to apply increment: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
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
	placeholders := make([]string, len(methods))
	args := []any{projectID}
	for i, m := range methods {
		placeholders[i] = "?"
		args = append(args, m)
		out[m] = 0
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT i.method, MAX(i.depth_reached)
		FROM daily_progress_items i
		JOIN daily_progress d ON d.id = i.record_id
		WHERE d.project_id = ? AND i.method IN (`+strings.Join(placeholders, ",")+`)
		GROUP BY i.method`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute max depth: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m     project.Method
			depth float64
		)
		if err := rows.Scan(&m, &depth); err != nil {
			return nil, fmt.Errorf("failed to scan max depth: %w", err)
		}
		out[m] = depth
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
		_, err := t.tx.ExecContext(ctx,
			`UPDATE project_progress SET max_depth = ? WHERE project_id = ? AND method = ?`,
			depth, projectID, m)
		if err != nil {
			return fmt.Errorf("failed to set max depth: %w", err)
		}
	}
	return nil
}

func (t *ledgerTx) Actuals(ctx context.Context, projectID string) (map[project.Method]reconcile.Actual, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT i.method, COALESCE(SUM(i.points_done), 0), COALESCE(MAX(i.depth_reached), 0)
		FROM daily_progress_items i
		JOIN daily_progress d ON d.id = i.record_id
		WHERE d.project_id = ?
		GROUP BY i.method`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily progress: %w", err)
	}
	defer rows.Close()

	out := make(map[project.Method]reconcile.Actual, len(project.Methods))
	for rows.Next() {
		var (
			m project.Method
			a reconcile.Actual
		)
		if err := rows.Scan(&m, &a.Points, &a.MaxDepth); err != nil {
			return nil, fmt.Errorf("failed to scan actuals: %w", err)
		}
		out[m] = a
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
		result, err := t.tx.ExecContext(ctx, `
			UPDATE project_progress
			SET completed_points = ?, max_depth = ?
			WHERE project_id = ? AND method = ? AND ? <= total_points
		`, a.Points, a.MaxDepth, projectID, m, a.Points)
		if err != nil {
			return fmt.Errorf("failed to set progress: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return repository.ErrGuardRejected
		}
	}
	return touchProject(ctx, t.tx, projectID)
}
