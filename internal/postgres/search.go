package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rpggio/fieldlog/internal/domain/progress"
)

// SearchRepository implements progress.SearchRepository with PostgreSQL text search
type SearchRepository struct {
	db *DB
}

// NewSearchRepository creates a new SearchRepository
func NewSearchRepository(db *DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Search matches every term of opts.Query against record notes, best match first
func (r *SearchRepository) Search(ctx context.Context, opts progress.SearchOptions) ([]progress.SearchResult, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, nil
	}

	query := `
		SELECT d.id, ts_headline('simple', d.notes, q, 'StartSel=[, StopSel=], MaxWords=12, MinWords=3')
		FROM daily_progress d, plainto_tsquery('simple', $1) q
		WHERE d.project_id = $2 AND to_tsvector('simple', d.notes) @@ q
		ORDER BY ts_rank(to_tsvector('simple', d.notes), q) DESC, d.local_date DESC
	`
	args := []any{opts.Query, opts.ProjectID}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	type hit struct{ id, snippet string }
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search daily progress: %w", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (hit, error) {
		var h hit
		err := row.Scan(&h.id, &h.snippet)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan search result: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	recs, err := queryRecords(ctx, r.db.Pool, recordSelect+` WHERE d.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]progress.Record, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}

	results := make([]progress.SearchResult, 0, len(hits))
	for _, h := range hits {
		rec, ok := byID[h.id]
		if !ok {
			continue
		}
		results = append(results, progress.SearchResult{Record: rec, Snippet: h.snippet})
	}
	return results, nil
}
