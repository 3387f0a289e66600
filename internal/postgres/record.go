package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/repository"
)

// RecordRepository implements progress.RecordRepository for PostgreSQL
type RecordRepository struct {
	db *DB
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Get retrieves the record stored under key
func (r *RecordRepository) Get(ctx context.Context, key progress.Key) (*progress.Record, error) {
	return findRecord(ctx, r.db.Pool, key)
}

// List returns records matching opts ordered by local_date DESC, id DESC
func (r *RecordRepository) List(ctx context.Context, opts progress.ListOptions) ([]progress.Record, error) {
	where, args := recordFilter(opts, true)
	query := recordSelect + where + ` ORDER BY d.local_date DESC, d.id DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}
	return queryRecords(ctx, r.db.Pool, query, args...)
}

// Count returns the number of records matching opts, ignoring paging
func (r *RecordRepository) Count(ctx context.Context, opts progress.ListOptions) (int, error) {
	where, args := recordFilter(opts, false)
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM daily_progress d`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count daily progress: %w", err)
	}
	return count, nil
}

const recordSelect = `
	SELECT d.id, d.project_id, d.author_id, COALESCE(e.name, ''), d.local_date, d.notes, d.created_at, d.updated_at
	FROM daily_progress d
	LEFT JOIN employees e ON e.id = d.author_id`

func recordFilter(opts progress.ListOptions, withCursor bool) (string, []any) {
	args := []any{opts.ProjectID}
	conditions := []string{"d.project_id = $1"}
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if opts.AuthorID != "" {
		add("d.author_id = $%d", opts.AuthorID)
	}
	if opts.From != "" {
		add("d.local_date >= $%d", opts.From)
	}
	if opts.To != "" {
		add("d.local_date <= $%d", opts.To)
	}
	if withCursor && opts.After != nil {
		args = append(args, opts.After.LocalDate, opts.After.ID)
		conditions = append(conditions, fmt.Sprintf("(d.local_date, d.id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func findRecord(ctx context.Context, q querier, key progress.Key) (*progress.Record, error) {
	records, err := queryRecords(ctx, q,
		recordSelect+` WHERE d.project_id = $1 AND d.author_id = $2 AND d.local_date = $3`,
		key.ProjectID, key.AuthorID, key.LocalDate)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, repository.ErrNotFound
	}
	return &records[0], nil
}

// queryRecords runs a recordSelect query and attaches the items of each record.
func queryRecords(ctx context.Context, q querier, query string, args ...any) ([]progress.Record, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily progress: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progress.Record, error) {
		rec := progress.Record{Items: []progress.Item{}}
		err := row.Scan(
			&rec.ID,
			&rec.ProjectID,
			&rec.AuthorID,
			&rec.AuthorName,
			&rec.LocalDate,
			&rec.Notes,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan daily progress: %w", err)
	}
	if err := loadItems(ctx, q, records); err != nil {
		return nil, err
	}
	return records, nil
}

func loadItems(ctx context.Context, q querier, records []progress.Record) error {
	if len(records) == 0 {
		return nil
	}
	index := make(map[string]int, len(records))
	ids := make([]string, len(records))
	for i := range records {
		index[records[i].ID] = i
		ids[i] = records[i].ID
	}

	rows, err := q.Query(ctx, `
		SELECT record_id, method, points_done, depth_reached
		FROM daily_progress_items
		WHERE record_id = ANY($1)
		ORDER BY record_id, position`, ids)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			recordID, method string
			it               progress.Item
		)
		if err := rows.Scan(&recordID, &method, &it.PointsDone, &it.DepthReached); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		it.Method = project.Method(method)
		if i, ok := index[recordID]; ok {
			records[i].Items = append(records[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating item rows: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, q querier, recordID string, items []progress.Item) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(`
			INSERT INTO daily_progress_items (record_id, position, method, points_done, depth_reached)
			VALUES ($1, $2, $3, $4, $5)
		`, recordID, i, string(it.Method), it.PointsDone, it.DepthReached)
	}
	br := q.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert items: %w", translateError(err))
	}
	return nil
}
