package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpggio/fieldlog/internal/domain/progress"
)

// SearchRepository implements progress.SearchRepository over the FTS5 index
type SearchRepository struct {
	db *DB
}

// NewSearchRepository creates a new SearchRepository
func NewSearchRepository(db *DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Search matches every term of opts.Query against record notes, best match first
func (r *SearchRepository) Search(ctx context.Context, opts progress.SearchOptions) ([]progress.SearchResult, error) {
	match := ftsQuery(opts.Query)
	if match == "" {
		return nil, nil
	}

	query := `
		SELECT d.id, snippet(daily_progress_fts, 0, '[', ']', '...', 12)
		FROM daily_progress_fts
		JOIN daily_progress d ON d.rowid = daily_progress_fts.rowid
		WHERE daily_progress_fts MATCH ? AND d.project_id = ?
		ORDER BY bm25(daily_progress_fts), d.local_date DESC
	`
	args := []any{match, opts.ProjectID}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	type hit struct{ id, snippet string }
	var hits []hit
	err := func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to search daily progress: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var h hit
			if err := rows.Scan(&h.id, &h.snippet); err != nil {
				return fmt.Errorf("failed to scan search result: %w", err)
			}
			hits = append(hits, h)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating search results: %w", err)
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}

	results := make([]progress.SearchResult, 0, len(hits))
	for _, h := range hits {
		recs, err := queryRecords(ctx, r.db, recordSelect+` WHERE d.id = ?`, h.id)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			continue
		}
		results = append(results, progress.SearchResult{Record: recs[0], Snippet: h.snippet})
	}
	return results, nil
}

// ftsQuery quotes every whitespace separated term so that user input is never
// parsed as FTS5 syntax. Terms are ANDed.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
