package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/repository"
)

// ProjectRepository implements project.Repository for SQLite
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a project together with one progress row per method
func (r *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, location, client, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		proj.ID,
		proj.Name,
		proj.Location,
		proj.Client,
		proj.StartDate,
		proj.EndDate,
		formatTime(proj.CreatedAt),
		formatTime(proj.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", translateError(err))
	}

	for _, m := range project.Methods {
		mp := proj.Progress[m]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO project_progress (project_id, method, total_points, completed_points, max_depth)
			VALUES (?, ?, ?, ?, ?)
		`, proj.ID, m, mp.TotalPoints, mp.CompletedPoints, mp.MaxDepth)
		if err != nil {
			return fmt.Errorf("failed to create project progress: %w", translateError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get retrieves a project by ID
func (r *ProjectRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	return getProject(ctx, r.db, id)
}

// List returns projects matching opts, newest first
func (r *ProjectRepository) List(ctx context.Context, opts project.ListOptions) ([]project.Project, error) {
	where, args := projectFilter(opts, true)
	query := `
		SELECT id, name, location, client, start_date, end_date, created_at, updated_at
		FROM projects` + where + `
		ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	projects, err := scanProjects(rows)
	if err != nil {
		return nil, err
	}
	if err := loadProgress(ctx, r.db, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Count returns the number of projects matching opts, ignoring paging
func (r *ProjectRepository) Count(ctx context.Context, opts project.ListOptions) (int, error) {
	where, args := projectFilter(opts, false)
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

// UpdateTotals sets total_points for the given methods. Each update only applies
// while completed_points still fits under the new total.
func (r *ProjectRepository) UpdateTotals(ctx context.Context, id string, totals map[project.Method]int64) (*project.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check project: %w", err)
	}
	if exists == 0 {
		return nil, repository.ErrNotFound
	}

	for _, m := range project.Methods {
		total, ok := totals[m]
		if !ok {
			continue
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE project_progress
			SET total_points = ?
			WHERE project_id = ? AND method = ? AND completed_points <= ?
		`, total, id, m, total)
		if err != nil {
			return nil, fmt.Errorf("failed to update totals: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return nil, repository.ErrGuardRejected
		}
	}

	if err := touchProject(ctx, tx, id); err != nil {
		return nil, err
	}
	proj, err := getProject(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return proj, nil
}

// ListProjectIDs returns every project id, oldest first
func (r *ProjectRepository) ListProjectIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM projects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list project ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return ids, nil
}

func projectFilter(opts project.ListOptions, withCursor bool) (string, []any) {
	var conditions []string
	var args []any
	if opts.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(opts.Search)) + "%"
		conditions = append(conditions, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(location) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if opts.Client != "" {
		conditions = append(conditions, "client = ?")
		args = append(args, opts.Client)
	}
	if withCursor && opts.After != nil {
		createdAt := formatTime(opts.After.CreatedAt)
		conditions = append(conditions, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, createdAt, createdAt, opts.After.ID)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func getProject(ctx context.Context, q querier, id string) (*project.Project, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, location, client, start_date, end_date, created_at, updated_at
		FROM projects
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	projects, err := scanProjects(rows)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, repository.ErrNotFound
	}
	if err := loadProgress(ctx, q, projects); err != nil {
		return nil, err
	}
	return &projects[0], nil
}

func scanProjects(rows *sql.Rows) ([]project.Project, error) {
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		var (
			proj                 project.Project
			endDate              sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(
			&proj.ID,
			&proj.Name,
			&proj.Location,
			&proj.Client,
			&proj.StartDate,
			&endDate,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if endDate.Valid && endDate.String != "" {
			proj.EndDate = &endDate.String
		}
		var err error
		if proj.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if proj.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, proj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

// loadProgress fills the progress map of each project. Rows must be closed before
// calling since the pool holds a single connection.
func loadProgress(ctx context.Context, q querier, projects []project.Project) error {
	if len(projects) == 0 {
		return nil
	}
	index := make(map[string]int, len(projects))
	placeholders := make([]string, len(projects))
	args := make([]any, len(projects))
	for i := range projects {
		projects[i].Progress = make(project.Progress, len(project.Methods))
		index[projects[i].ID] = i
		placeholders[i] = "?"
		args[i] = projects[i].ID
	}

	rows, err := q.QueryContext(ctx, `
		SELECT project_id, method, total_points, completed_points, max_depth
		FROM project_progress
		WHERE project_id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to load project progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			projectID string
			method    project.Method
			mp        project.MethodProgress
		)
		if err := rows.Scan(&projectID, &method, &mp.TotalPoints, &mp.CompletedPoints, &mp.MaxDepth); err != nil {
			return fmt.Errorf("failed to scan project progress: %w", err)
		}
		if i, ok := index[projectID]; ok {
			projects[i].Progress[method] = mp
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating progress rows: %w", err)
	}
	for i := range projects {
		projects[i].Progress = projects[i].Progress.Snapshot()
	}
	return nil
}

func touchProject(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
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
