package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/repository"
)

// RecordRepository implements progress.RecordRepository for SQLite
type RecordRepository struct {
	db *DB
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Get retrieves the record stored under key
func (r *RecordRepository) Get(ctx context.Context, key progress.Key) (*progress.Record, error) {
	return findRecord(ctx, r.db, key)
}

// List returns records matching opts ordered by local_date DESC, id DESC
func (r *RecordRepository) List(ctx context.Context, opts progress.ListOptions) ([]progress.Record, error) {
	where, args := recordFilter(opts, true)
	query := recordSelect + where + ` ORDER BY d.local_date DESC, d.id DESC`
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}
	return queryRecords(ctx, r.db, query, args...)
}

// Count returns the number of records matching opts, ignoring paging
func (r *RecordRepository) Count(ctx context.Context, opts progress.ListOptions) (int, error) {
	where, args := recordFilter(opts, false)
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_progress d`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count daily progress: %w", err)
	}
	return count, nil
}

const recordSelect = `
	SELECT d.id, d.project_id, d.author_id, COALESCE(e.name, ''), d.local_date, d.notes, d.created_at, d.updated_at
	FROM daily_progress d
	LEFT JOIN employees e ON e.id = d.author_id`

func recordFilter(opts progress.ListOptions, withCursor bool) (string, []any) {
	conditions := []string{"d.project_id = ?"}
	args := []any{opts.ProjectID}
	if opts.AuthorID != "" {
		conditions = append(conditions, "d.author_id = ?")
		args = append(args, opts.AuthorID)
	}
	if opts.From != "" {
		conditions = append(conditions, "d.local_date >= ?")
		args = append(args, opts.From)
	}
	if opts.To != "" {
		conditions = append(conditions, "d.local_date <= ?")
		args = append(args, opts.To)
	}
	if withCursor && opts.After != nil {
		conditions = append(conditions, "(d.local_date < ? OR (d.local_date = ? AND d.id < ?))")
		args = append(args, opts.After.LocalDate, opts.After.LocalDate, opts.After.ID)
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func findRecord(ctx context.Context, q querier, key progress.Key) (*progress.Record, error) {
	records, err := queryRecords(ctx, q,
		recordSelect+` WHERE d.project_id = ? AND d.author_id = ? AND d.local_date = ?`,
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
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily progress: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, q, records); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecords(rows *sql.Rows) ([]progress.Record, error) {
	defer rows.Close()

	var records []progress.Record
	for rows.Next() {
		var (
			rec                  progress.Record
			createdAt, updatedAt string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.ProjectID,
			&rec.AuthorID,
			&rec.AuthorName,
			&rec.LocalDate,
			&rec.Notes,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily progress: %w", err)
		}
		var err error
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		rec.Items = []progress.Item{}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily progress rows: %w", err)
	}
	return records, nil
}

func loadItems(ctx context.Context, q querier, records []progress.Record) error {
	if len(records) == 0 {
		return nil
	}
	index := make(map[string]int, len(records))
	placeholders := make([]string, len(records))
	args := make([]any, len(records))
	for i := range records {
		index[records[i].ID] = i
		placeholders[i] = "?"
		args[i] = records[i].ID
	}

	rows, err := q.QueryContext(ctx, `
		SELECT record_id, method, points_done, depth_reached
		FROM daily_progress_items
		WHERE record_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY record_id, position`, args...)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			recordID string
			it       progress.Item
		)
		if err := rows.Scan(&recordID, &it.Method, &it.PointsDone, &it.DepthReached); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
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
	for i, it := range items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO daily_progress_items (record_id, position, method, points_done, depth_reached)
			VALUES (?, ?, ?, ?, ?)
		`, recordID, i, it.Method, it.PointsDone, it.DepthReached)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", translateError(err))
		}
	}
	return nil
}
