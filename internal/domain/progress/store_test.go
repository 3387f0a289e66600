package progress_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/repository"
)

// memStore is an in-memory ledger with rollback, used to exercise the service
// without a database.
type memStore struct {
	mu       sync.Mutex
	projects map[string]*project.Project
	records  map[string]*progress.Record

	insertErr error
}

func newMemStore(projects ...*project.Project) *memStore {
	s := &memStore{
		projects: map[string]*project.Project{},
		records:  map[string]*progress.Record{},
	}
	for _, p := range projects {
		p.Progress = p.Progress.Snapshot()
		s.projects[p.ID] = p
	}
	return s
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx progress.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, records := s.clone()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.projects, s.records = projects, records
		return err
	}
	return nil
}

func (s *memStore) clone() (map[string]*project.Project, map[string]*progress.Record) {
	projects := make(map[string]*project.Project, len(s.projects))
	for id, p := range s.projects {
		cp := *p
		cp.Progress = p.Progress.Snapshot()
		projects[id] = &cp
	}
	records := make(map[string]*progress.Record, len(s.records))
	for id, r := range s.records {
		records[id] = copyRecord(r)
	}
	return projects, records
}

func copyRecord(r *progress.Record) *progress.Record {
	cp := *r
	cp.Items = append([]progress.Item{}, r.Items...)
	return &cp
}

func (s *memStore) project(id string) *project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil
	}
	cp := *p
	cp.Progress = p.Progress.Snapshot()
	return &cp
}

func (s *memStore) Get(ctx context.Context, id string) (*project.Project, error) {
	if p := s.project(id); p != nil {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

type memRecords struct{ s *memStore }

func (r memRecords) Get(ctx context.Context, key progress.Key) (*progress.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&memTx{s: r.s}).FindRecord(ctx, key)
}

func (r memRecords) filtered(opts progress.ListOptions) []progress.Record {
	var out []progress.Record
	for _, rec := range r.s.records {
		if rec.ProjectID != opts.ProjectID {
			continue
		}
		if opts.AuthorID != "" && rec.AuthorID != opts.AuthorID {
			continue
		}
		if opts.From != "" && rec.LocalDate < opts.From {
			continue
		}
		if opts.To != "" && rec.LocalDate > opts.To {
			continue
		}
		out = append(out, *copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocalDate != out[j].LocalDate {
			return out[i].LocalDate > out[j].LocalDate
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r memRecords) List(ctx context.Context, opts progress.ListOptions) ([]progress.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.filtered(opts)
	if opts.After != nil {
		var after []progress.Record
		for _, rec := range rows {
			if rec.LocalDate < opts.After.LocalDate || (rec.LocalDate == opts.After.LocalDate && rec.ID < opts.After.ID) {
				after = append(after, rec)
			}
		}
		rows = after
	}
	if opts.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[opts.Offset:]
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

func (r memRecords) Count(ctx context.Context, opts progress.ListOptions) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.filtered(opts)), nil
}

type memSearch struct{ s *memStore }

func (m memSearch) Search(ctx context.Context, opts progress.SearchOptions) ([]progress.SearchResult, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []progress.SearchResult
	for _, rec := range m.s.records {
		if rec.ProjectID == opts.ProjectID && strings.Contains(strings.ToLower(rec.Notes), strings.ToLower(opts.Query)) {
			out = append(out, progress.SearchResult{Record: *copyRecord(rec)})
		}
	}
	return out, nil
}

// memTx runs with memStore.mu held.
type memTx struct{ s *memStore }

func (t *memTx) GetProject(ctx context.Context, id string) (*project.Project, error) {
	p, ok := t.s.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	cp.Progress = p.Progress.Snapshot()
	return &cp, nil
}

func (t *memTx) FindRecord(ctx context.Context, key progress.Key) (*progress.Record, error) {
	for _, rec := range t.s.records {
		if rec.Key() == key {
			return copyRecord(rec), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *memTx) InsertRecord(ctx context.Context, rec *progress.Record) error {
	if t.s.insertErr != nil {
		return t.s.insertErr
	}
	if _, err := t.FindRecord(ctx, rec.Key()); err == nil {
		return repository.ErrConflict
	}
	t.s.records[rec.ID] = copyRecord(rec)
	return nil
}

func (t *memTx) ReplaceRecord(ctx context.Context, rec *progress.Record) error {
	if _, ok := t.s.records[rec.ID]; !ok {
		return repository.ErrNotFound
	}
	t.s.records[rec.ID] = copyRecord(rec)
	return nil
}

func (t *memTx) DeleteRecord(ctx context.Context, id string) error {
	if _, ok := t.s.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.s.records, id)
	return nil
}

func (t *memTx) ApplyIncrement(ctx context.Context, projectID string, inc map[project.Method]int64, maxCandidate map[project.Method]float64) error {
	p, ok := t.s.projects[projectID]
	if !ok {
		return repository.ErrNotFound
	}
	next := p.Progress.Snapshot()
	for _, m := range project.Methods {
		mp := next[m]
		mp.CompletedPoints += inc[m]
		if mp.CompletedPoints < 0 || mp.CompletedPoints > mp.TotalPoints {
			return repository.ErrGuardRejected
		}
		if maxCandidate[m] > mp.MaxDepth {
			mp.MaxDepth = maxCandidate[m]
		}
		next[m] = mp
	}
	p.Progress = next
	return nil
}

func (t *memTx) MaxDepth(ctx context.Context, projectID string, methods []project.Method) (map[project.Method]float64, error) {
	out := map[project.Method]float64{}
	for _, rec := range t.s.records {
		if rec.ProjectID != projectID {
			continue
		}
		for _, it := range rec.Items {
			for _, m := range methods {
				if it.Method == m && it.DepthReached > out[m] {
					out[m] = it.DepthReached
				}
			}
		}
	}
	return out, nil
}

func (t *memTx) SetMaxDepth(ctx context.Context, projectID string, depths map[project.Method]float64) error {
	p, ok := t.s.projects[projectID]
	if !ok {
		return repository.ErrNotFound
	}
	for m, d := range depths {
		mp := p.Progress[m]
		mp.MaxDepth = d
		p.Progress[m] = mp
	}
	return nil
}
