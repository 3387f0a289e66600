package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/paging"
	"github.com/rpggio/fieldlog/internal/repository"
)

const (
	maxNameLength    = 200
	defaultListLimit = 10
	maxListLimit     = 50
)

// Service handles project operations.
type Service struct {
	repo       Repository
	activities ActivityRepository
	logger     *slog.Logger
}

// NewService creates a new project service.
func NewService(repo Repository, activities ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, activities: activities, logger: logger}
}

// CreateRequest defines project creation inputs.
type CreateRequest struct {
	ID        string
	ActorID   string
	Name      string
	Location  string
	Client    string
	StartDate string
	EndDate   *string
	Totals    map[Method]int64
}

// Create creates a new project with a progress row for every method.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Detail, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name is required and at most %d characters", ErrInvalidInput, maxNameLength)
	}
	if !ValidDate(req.StartDate) {
		return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidInput)
	}
	var endDate *string
	if req.EndDate != nil && *req.EndDate != "" {
		if !ValidDate(*req.EndDate) {
			return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidInput)
		}
		if *req.EndDate < req.StartDate {
			return nil, fmt.Errorf("%w: end_date precedes start_date", ErrInvalidInput)
		}
		end := *req.EndDate
		endDate = &end
	}

	progress := make(Progress, len(Methods))
	for m, total := range req.Totals {
		if !m.Valid() {
			return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidInput, m)
		}
		if total < 0 {
			return nil, fmt.Errorf("%w: total points for %s must be >= 0", ErrInvalidInput, m)
		}
		progress[m] = MethodProgress{TotalPoints: total}
	}

	id := req.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	proj := &Project{
		ID:        id,
		Name:      name,
		Location:  strings.TrimSpace(req.Location),
		Client:    strings.TrimSpace(req.Client),
		StartDate: req.StartDate,
		EndDate:   endDate,
		Progress:  progress.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, proj); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: project %s already exists", ErrInvalidInput, id)
		}
		return nil, fmt.Errorf("creating project: %w", err)
	}

	if s.activities != nil {
		_ = s.activities.Log(ctx, &activity.ActivityEntry{
			ProjectID:    proj.ID,
			ActorID:      req.ActorID,
			ActivityType: activity.TypeProjectCreated,
			Summary:      fmt.Sprintf("Created project %s", proj.Name),
			CreatedAt:    now,
		})
	}

	return NewDetail(proj), nil
}

// Get fetches a project by ID.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	proj, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return NewDetail(proj), nil
}

// ListRequest describes a project listing.
type ListRequest struct {
	Search string
	Client string
	Page   paging.Params
}

// List returns projects newest first, in paging or cursor mode.
func (s *Service) List(ctx context.Context, req ListRequest) (*paging.Result[Detail], error) {
	params, err := req.Page.Normalize(defaultListLimit, maxListLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	opts := ListOptions{
		Search: strings.TrimSpace(req.Search),
		Client: strings.TrimSpace(req.Client),
	}

	if params.Mode == paging.ModeCursor {
		if params.Cursor != "" {
			after, err := decodeCursor(params.Cursor)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			opts.After = after
		}
		opts.Limit = params.Limit + 1
		projects, err := s.repo.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		return paging.NewCursorPage(params, details(projects), cursorKey), nil
	}

	total, err := s.repo.Count(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("counting projects: %w", err)
	}
	opts.Limit = params.Limit
	opts.Offset = params.Offset()
	projects, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return paging.NewPage(params, details(projects), total), nil
}

// UpdateTotalsRequest changes the planned points of some methods.
type UpdateTotalsRequest struct {
	ID      string
	ActorID string
	Totals  map[Method]int64
}

// UpdateTotals sets total_points for the provided methods. A total may never fall below
// the points already completed.
func (s *Service) UpdateTotals(ctx context.Context, req UpdateTotalsRequest) (*Detail, error) {
	if len(req.Totals) == 0 {
		return nil, fmt.Errorf("%w: no totals provided", ErrInvalidInput)
	}
	for m, total := range req.Totals {
		if !m.Valid() {
			return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidInput, m)
		}
		if total < 0 {
			return nil, fmt.Errorf("%w: total points for %s must be >= 0", ErrInvalidInput, m)
		}
	}

	current, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	if err := checkTotals(current, req.Totals); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateTotals(ctx, req.ID, req.Totals)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrProjectNotFound
	case errors.Is(err, repository.ErrGuardRejected):
		// completed_points moved between the read and the guarded write.
		fresh, getErr := s.repo.Get(ctx, req.ID)
		if getErr != nil {
			return nil, fmt.Errorf("getting project: %w", getErr)
		}
		if totalsErr := checkTotals(fresh, req.Totals); totalsErr != nil {
			return nil, totalsErr
		}
		return nil, fmt.Errorf("updating totals: %w", err)
	case err != nil:
		return nil, fmt.Errorf("updating totals: %w", err)
	}

	if s.activities != nil {
		_ = s.activities.Log(ctx, &activity.ActivityEntry{
			ProjectID:    req.ID,
			ActorID:      req.ActorID,
			ActivityType: activity.TypeTotalsUpdated,
			Summary:      "Updated planned points",
			Details:      activity.EncodeDetails(req.Totals),
		})
	}
	s.logger.Info("project totals updated", "project_id", req.ID, "methods", len(req.Totals))

	return NewDetail(updated), nil
}

func checkTotals(proj *Project, totals map[Method]int64) error {
	for _, m := range Methods {
		total, ok := totals[m]
		if !ok {
			continue
		}
		if completed := proj.Progress[m].CompletedPoints; total < completed {
			return &TotalsError{Method: m, Completed: completed}
		}
	}
	return nil
}

func details(projects []Project) []Detail {
	out := make([]Detail, 0, len(projects))
	for i := range projects {
		out = append(out, *NewDetail(&projects[i]))
	}
	return out
}

func cursorKey(d Detail) []string {
	return []string{d.CreatedAt.UTC().Format(time.RFC3339Nano), d.ID}
}

func decodeCursor(token string) (*Cursor, error) {
	parts, err := paging.DecodeCursor(token, 2)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, paging.ErrInvalidCursor
	}
	return &Cursor{CreatedAt: createdAt.UTC(), ID: parts[1]}, nil
}
