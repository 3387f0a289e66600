package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rpggio/fieldlog/internal/domain/activity"
)

// ActivityRepository implements activity.Repository for PostgreSQL
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log inserts a new activity entry
func (r *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO activity_log (
			project_id, record_id, actor_id,
			activity_type, summary, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		entry.ProjectID,
		entry.RecordID,
		entry.ActorID,
		string(entry.ActivityType),
		entry.Summary,
		entry.Details,
		createdAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	entry.CreatedAt = createdAt.UTC()
	return nil
}

// List returns activity entries matching the given filters, newest first
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	query := `
		SELECT
			id, project_id, record_id, actor_id,
			activity_type, summary, details, created_at
		FROM activity_log
	`

	var (
		conditions []string
		args       []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if opts.ProjectID != "" {
		add("project_id = $%d", opts.ProjectID)
	}
	if opts.RecordID != nil {
		add("record_id = $%d", *opts.RecordID)
	}
	if opts.ActivityType != nil {
		add("activity_type = $%d", string(*opts.ActivityType))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (activity.ActivityEntry, error) {
		var (
			entry activity.ActivityEntry
			kind  string
		)
		err := row.Scan(
			&entry.ID,
			&entry.ProjectID,
			&entry.RecordID,
			&entry.ActorID,
			&kind,
			&entry.Summary,
			&entry.Details,
			&entry.CreatedAt,
		)
		entry.ActivityType = activity.ActivityType(kind)
		entry.CreatedAt = entry.CreatedAt.UTC()
		return entry, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity entry: %w", err)
	}
	return entries, nil
}
