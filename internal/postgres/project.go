package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/repository"
)

// ProjectRepository implements project.Repository for PostgreSQL
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a project together with one progress row per method
func (r *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO projects (id, name, location, client, start_date, end_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			proj.ID,
			proj.Name,
			proj.Location,
			proj.Client,
			proj.StartDate,
			proj.EndDate,
			proj.CreatedAt.Truncate(time.Microsecond),
			proj.UpdatedAt.Truncate(time.Microsecond),
		)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", translateError(err))
		}

		for _, m := range project.Methods {
			mp := proj.Progress[m]
			_, err := tx.Exec(ctx, `
				INSERT INTO project_progress (project_id, method, total_points, completed_points, max_depth)
				VALUES ($1, $2, $3, $4, $5)
			`, proj.ID, string(m), mp.TotalPoints, mp.CompletedPoints, mp.MaxDepth)
			if err != nil {
				return fmt.Errorf("failed to create project progress: %w", translateError(err))
			}
		}
		return nil
	})
}

// Get retrieves a project by ID
func (r *ProjectRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	return getProject(ctx, r.db.Pool, id, false)
}

// List returns projects matching opts, newest first
func (r *ProjectRepository) List(ctx context.Context, opts project.ListOptions) ([]project.Project, error) {
	where, args := projectFilter(opts, true)
	query := projectSelect + where + ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	projects, err := queryProjects(ctx, r.db.Pool, query, args...)
	if err != nil {
		return nil, err
	}
	if err := loadProgress(ctx, r.db.Pool, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Count returns the number of projects matching opts, ignoring paging
func (r *ProjectRepository) Count(ctx context.Context, opts project.ListOptions) (int, error) {
	where, args := projectFilter(opts, false)
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

// UpdateTotals sets total_points for the given methods. Each update only applies
// while completed_points still fits under the new total.
func (r *ProjectRepository) UpdateTotals(ctx context.Context, id string, totals map[project.Method]int64) (*project.Project, error) {
	var proj *project.Project
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if _, err := getProject(ctx, tx, id, true); err != nil {
			return err
		}
		for _, m := range project.Methods {
			total, ok := totals[m]
			if !ok {
				continue
			}
			tag, err := tx.Exec(ctx, `
				UPDATE project_progress
				SET total_points = $1
				WHERE project_id = $2 AND method = $3 AND completed_points <= $1
			`, total, id, string(m))
			if err != nil {
				return fmt.Errorf("failed to update totals: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return repository.ErrGuardRejected
			}
		}
		if err := touchProject(ctx, tx, id); err != nil {
			return err
		}
		var err error
		proj, err = getProject(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return proj, nil
}

// ListProjectIDs returns every project id, oldest first
func (r *ProjectRepository) ListProjectIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM projects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list project ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan project ids: %w", err)
	}
	return ids, nil
}

const projectSelect = `
	SELECT id, name, location, client, start_date, end_date, created_at, updated_at
	FROM projects`

func projectFilter(opts project.ListOptions, withCursor bool) (string, []any) {
	var conditions []string
	var args []any
	if opts.Search != "" {
		args = append(args, "%"+escapeLike(opts.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR location ILIKE $%d)", len(args), len(args)))
	}
	if opts.Client != "" {
		args = append(args, opts.Client)
		conditions = append(conditions, fmt.Sprintf("client = $%d", len(args)))
	}
	if withCursor && opts.After != nil {
		args = append(args, opts.After.CreatedAt, opts.After.ID)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
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

// getProject loads a project with its progress rows. With lock set the project row
// stays locked until the surrounding transaction ends.
func getProject(ctx context.Context, q querier, id string, lock bool) (*project.Project, error) {
	query := projectSelect + ` WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	projects, err := queryProjects(ctx, q, query, id)
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

func queryProjects(ctx context.Context, q querier, query string, args ...any) ([]project.Project, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (project.Project, error) {
		var proj project.Project
		err := row.Scan(
			&proj.ID,
			&proj.Name,
			&proj.Location,
			&proj.Client,
			&proj.StartDate,
			&proj.EndDate,
			&proj.CreatedAt,
			&proj.UpdatedAt,
		)
		proj.CreatedAt = proj.CreatedAt.UTC()
		proj.UpdatedAt = proj.UpdatedAt.UTC()
		return proj, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return projects, nil
}

func loadProgress(ctx context.Context, q querier, projects []project.Project) error {
	if len(projects) == 0 {
		return nil
	}
	index := make(map[string]int, len(projects))
	ids := make([]string, len(projects))
	for i := range projects {
		projects[i].Progress = make(project.Progress, len(project.Methods))
		index[projects[i].ID] = i
		ids[i] = projects[i].ID
	}

	rows, err := q.Query(ctx, `
		SELECT project_id, method, total_points, completed_points, max_depth
		FROM project_progress
		WHERE project_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to load project progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			projectID, method string
			mp                project.MethodProgress
		)
		if err := rows.Scan(&projectID, &method, &mp.TotalPoints, &mp.CompletedPoints, &mp.MaxDepth); err != nil {
			return fmt.Errorf("failed to scan project progress: %w", err)
		}
		if i, ok := index[projectID]; ok {
			projects[i].Progress[project.Method(method)] = mp
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
	tag, err := q.Exec(ctx, `UPDATE projects SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
