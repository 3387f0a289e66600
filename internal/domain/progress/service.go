package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/paging"
	"github.com/rpggio/fieldlog/internal/repository"
)

const (
	defaultListLimit   = 20
	maxListLimit       = 100
	defaultSearchLimit = 20
	maxSearchLimit     = 100

	// AuthorMe filters a listing to the caller's own records.
	AuthorMe = "me"
)

// Service implements the daily progress ledger.
type Service struct {
	ledger     Ledger
	records    RecordRepository
	search     SearchRepository
	projects   ProjectReader
	employees  EmployeeResolver
	activities ActivityLogger
	logger     *slog.Logger
}

// NewService creates a new daily progress service.
func NewService(
	ledger Ledger,
	records RecordRepository,
	search SearchRepository,
	projects ProjectReader,
	employees EmployeeResolver,
	activities ActivityLogger,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		ledger:     ledger,
		records:    records,
		search:     search,
		projects:   projects,
		employees:  employees,
		activities: activities,
		logger:     logger,
	}
}

// UpsertRequest describes a full replace of the actor's report for one date.
type UpsertRequest struct {
	ProjectID string
	ActorID   string
	LocalDate string
	Notes     string
	// Items nil means the field was absent from the request.
	Items        []ItemInput
	ConfirmClear bool
}

// Upsert creates or replaces the actor's report for a date and applies the difference
// to the project aggregate in the same transaction. Submitting the same items twice
// leaves the aggregate unchanged.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*Result, error) {
	employeeID, err := s.employees.Resolve(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !project.ValidDate(req.LocalDate) {
		return nil, ErrInvalidDate
	}
	if req.Items == nil {
		return nil, ErrItemsRequired
	}

	key := Key{ProjectID: req.ProjectID, AuthorID: employeeID, LocalDate: req.LocalDate}
	items := Normalize(req.Items)

	var (
		res     *Result
		created bool
	)
	err = s.ledger.WithinTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		proj, err := loadProject(ctx, tx, req.ProjectID)
		if err != nil {
			return err
		}
		if err := checkWindow(proj, req.LocalDate); err != nil {
			return err
		}

		existing, err := tx.FindRecord(ctx, key)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("finding daily progress: %w", err)
		}
		if errors.Is(err, repository.ErrNotFound) {
			existing = nil
		}
		if existing != nil && len(existing.Items) > 0 && len(req.Items) == 0 && !req.ConfirmClear {
			return ErrConfirmationRequired
		}

		delta := TallyItems(items)
		var prev map[project.Method]Tally
		if existing != nil {
			prev = TallyItems(existing.Items)
		}

		inc := make(map[project.Method]int64, len(project.Methods))
		maxCandidate := make(map[project.Method]float64, len(project.Methods))
		var violations []project.Method
		for _, m := range project.Methods {
			cur := proj.Progress[m]
			maxCandidate[m] = math.Max(delta[m].DepthMax, cur.MaxDepth)
			// One report can never hold more than the method's total.
			if delta[m].Points > cur.TotalPoints {
				violations = append(violations, m)
				continue
			}
			inc[m] = delta[m].Points - prev[m].Points
			next := cur.CompletedPoints + inc[m]
			if next < 0 || next > cur.TotalPoints {
				violations = append(violations, m)
			}
		}
		if len(violations) > 0 {
			return &BoundsError{Methods: violations}
		}

		now := time.Now().UTC()
		if existing == nil {
			created = true
			rec := &Record{
				ID:        uuid.NewString(),
				ProjectID: req.ProjectID,
				AuthorID:  employeeID,
				LocalDate: req.LocalDate,
				Notes:     req.Notes,
				Items:     items,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.InsertRecord(ctx, rec); err != nil {
				return translateWrite(err, "inserting daily progress")
			}
		} else {
			rec := *existing
			rec.Notes = req.Notes
			rec.Items = items
			rec.UpdatedAt = now
			if err := tx.ReplaceRecord(ctx, &rec); err != nil {
				return translateWrite(err, "replacing daily progress")
			}
		}

		if err := tx.ApplyIncrement(ctx, req.ProjectID, inc, maxCandidate); err != nil {
			return translateWrite(err, "applying progress increment")
		}

		// A replaced report may have held the deepest reading of a method; the
		// monotonic max cannot lower it, so rebuild it from surviving records.
		var stale []project.Method
		for _, m := range project.Methods {
			p := prev[m]
			if p.DepthMax > 0 && p.DepthMax >= proj.Progress[m].MaxDepth && delta[m].DepthMax < p.DepthMax {
				stale = append(stale, m)
			}
		}
		if err := recomputeMaxDepth(ctx, tx, req.ProjectID, stale); err != nil {
			return err
		}

		saved, err := tx.FindRecord(ctx, key)
		if err != nil {
			return fmt.Errorf("reloading daily progress: %w", err)
		}
		fresh, err := loadProject(ctx, tx, req.ProjectID)
		if err != nil {
			return err
		}
		res = newResult(saved, fresh, stale)
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := activity.TypeProgressSaved
	summary := fmt.Sprintf("Saved daily progress for %s", req.LocalDate)
	if len(items) == 0 {
		kind = activity.TypeProgressCleared
		summary = fmt.Sprintf("Cleared daily progress for %s", req.LocalDate)
	}
	s.logActivity(ctx, res.Record, req.ActorID, kind, summary, map[string]any{
		"created":    created,
		"items":      len(items),
		"recomputed": res.Recomputed,
	})
	s.logger.Debug("daily progress saved",
		"project_id", req.ProjectID,
		"record_id", res.Record.ID,
		"local_date", req.LocalDate,
		"created", created,
	)

	return res, nil
}

// GetRequest identifies the actor's report for one date.
type GetRequest struct {
	ProjectID string
	ActorID   string
	LocalDate string
}

// Get returns the actor's report for a date with the current project snapshot. A
// missing report is not an error: the result carries a nil record.
func (s *Service) Get(ctx context.Context, req GetRequest) (*Result, error) {
	employeeID, err := s.employees.Resolve(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !project.ValidDate(req.LocalDate) {
		return nil, ErrInvalidDate
	}

	proj, err := s.projects.Get(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}

	rec, err := s.records.Get(ctx, Key{ProjectID: req.ProjectID, AuthorID: employeeID, LocalDate: req.LocalDate})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("getting daily progress: %w", err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		rec = nil
	}
	return newResult(rec, proj, nil), nil
}

// DeleteRequest identifies the actor's report to remove.
type DeleteRequest struct {
	ProjectID string
	ActorID   string
	LocalDate string
}

// Delete removes the actor's report for a date and withdraws its contribution from
// the project aggregate in the same transaction.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (*Result, error) {
	employeeID, err := s.employees.Resolve(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !project.ValidDate(req.LocalDate) {
		return nil, ErrInvalidDate
	}

	key := Key{ProjectID: req.ProjectID, AuthorID: employeeID, LocalDate: req.LocalDate}

	var res *Result
	err = s.ledger.WithinTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		proj, err := loadProject(ctx, tx, req.ProjectID)
		if err != nil {
			return err
		}

		rec, err := tx.FindRecord(ctx, key)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("finding daily progress: %w", err)
		}

		sum := TallyItems(rec.Items)
		dec := make(map[project.Method]int64, len(project.Methods))
		var violations []project.Method
		for _, m := range project.Methods {
			cur := proj.Progress[m]
			dec[m] = -sum[m].Points
			if next := cur.CompletedPoints + dec[m]; next < 0 || next > cur.TotalPoints {
				violations = append(violations, m)
			}
		}
		if len(violations) > 0 {
			return &BoundsError{Methods: violations}
		}

		if err := tx.DeleteRecord(ctx, rec.ID); err != nil {
			return translateWrite(err, "deleting daily progress")
		}
		if err := tx.ApplyIncrement(ctx, req.ProjectID, dec, nil); err != nil {
			return translateWrite(err, "withdrawing progress")
		}

		var stale []project.Method
		for _, m := range project.Methods {
			if d := sum[m].DepthMax; d > 0 && d >= proj.Progress[m].MaxDepth {
				stale = append(stale, m)
			}
		}
		if err := recomputeMaxDepth(ctx, tx, req.ProjectID, stale); err != nil {
			return err
		}

		fresh, err := loadProject(ctx, tx, req.ProjectID)
		if err != nil {
			return err
		}
		res = newResult(rec, fresh, stale)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, res.Record, req.ActorID, activity.TypeProgressDeleted,
		fmt.Sprintf("Deleted daily progress for %s", req.LocalDate),
		map[string]any{"recomputed": res.Recomputed},
	)
	if len(res.Recomputed) > 0 {
		s.logActivity(ctx, res.Record, req.ActorID, activity.TypeMaxDepthRecomputed,
			"Recomputed max depth after delete",
			map[string]any{"methods": res.Recomputed},
		)
	}

	return res, nil
}

// ListRequest filters a project's reports.
type ListRequest struct {
	ProjectID string
	ActorID   string
	From      string
	To        string
	// Author is an employee id, or AuthorMe for the caller's own reports.
	Author string
	Page   paging.Params
}

// List returns a project's reports, newest date first.
func (s *Service) List(ctx context.Context, req ListRequest) (*paging.Result[Record], error) {
	params, err := req.Page.Normalize(defaultListLimit, maxListLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.From != "" && !project.ValidDate(req.From) {
		return nil, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidInput)
	}
	if req.To != "" && !project.ValidDate(req.To) {
		return nil, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidInput)
	}

	if _, err := s.projects.Get(ctx, req.ProjectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}

	opts := ListOptions{ProjectID: req.ProjectID, From: req.From, To: req.To}
	switch author := strings.TrimSpace(req.Author); author {
	case "":
	case AuthorMe:
		employeeID, err := s.employees.Resolve(ctx, req.ActorID)
		if err != nil {
			return nil, err
		}
		opts.AuthorID = employeeID
	default:
		opts.AuthorID = author
	}

	if params.Mode == paging.ModeCursor {
		if params.Cursor != "" {
			parts, err := paging.DecodeCursor(params.Cursor, 2)
			if err != nil || !project.ValidDate(parts[0]) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, paging.ErrInvalidCursor)
			}
			opts.After = &Cursor{LocalDate: parts[0], ID: parts[1]}
		}
		opts.Limit = params.Limit + 1
		rows, err := s.records.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing daily progress: %w", err)
		}
		return paging.NewCursorPage(params, rows, func(r Record) []string {
			return []string{r.LocalDate, r.ID}
		}), nil
	}

	total, err := s.records.Count(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("counting daily progress: %w", err)
	}
	opts.Limit = params.Limit
	opts.Offset = params.Offset()
	rows, err := s.records.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing daily progress: %w", err)
	}
	return paging.NewPage(params, rows, total), nil
}

// SearchRequest is a full-text query over a project's report notes.
type SearchRequest struct {
	ProjectID string
	Query     string
	Limit     int
}

// Search finds reports whose notes match the query.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if _, err := s.projects.Get(ctx, req.ProjectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}

	results, err := s.search.Search(ctx, SearchOptions{ProjectID: req.ProjectID, Query: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("searching daily progress: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

func (s *Service) logActivity(ctx context.Context, rec *Record, actorID string, kind activity.ActivityType, summary string, details any) {
	if s.activities == nil || rec == nil {
		return
	}
	recordID := rec.ID
	if err := s.activities.Log(ctx, &activity.ActivityEntry{
		ProjectID:    rec.ProjectID,
		RecordID:     &recordID,
		ActorID:      actorID,
		ActivityType: kind,
		Summary:      summary,
		Details:      activity.EncodeDetails(details),
	}); err != nil {
		s.logger.Warn("activity log failed", "type", kind, "record_id", rec.ID, "error", err)
	}
}

func loadProject(ctx context.Context, tx LedgerTx, id string) (*project.Project, error) {
	proj, err := tx.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return proj, nil
}

func checkWindow(proj *project.Project, localDate string) error {
	if proj.Before(localDate) {
		return ErrBeforeStart
	}
	if proj.After(localDate) {
		return ErrAfterEnd
	}
	return nil
}

func recomputeMaxDepth(ctx context.Context, tx LedgerTx, projectID string, methods []project.Method) error {
	if len(methods) == 0 {
		return nil
	}
	depths, err := tx.MaxDepth(ctx, projectID, methods)
	if err != nil {
		return fmt.Errorf("recomputing max depth: %w", err)
	}
	if depths == nil {
		depths = make(map[project.Method]float64, len(methods))
	}
	for _, m := range methods {
		if _, ok := depths[m]; !ok {
			depths[m] = 0
		}
	}
	if err := tx.SetMaxDepth(ctx, projectID, depths); err != nil {
		return fmt.Errorf("setting max depth: %w", err)
	}
	return nil
}

// translateWrite maps store write races onto ErrConflict.
func translateWrite(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrGuardRejected):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
