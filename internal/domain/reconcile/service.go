package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/repository"
)

// Service checks project aggregates against their daily progress records.
type Service struct {
	store      Store
	activities ActivityRepository
	logger     *slog.Logger
}

// NewService creates a new reconciliation service.
func NewService(store Store, activities ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, activities: activities, logger: logger}
}

// Check reports, per method, the stored aggregate next to the value derived from records.
func (s *Service) Check(ctx context.Context, projectID string) (*Report, error) {
	var rep *Report
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		proj, actual, err := load(ctx, tx, projectID)
		if err != nil {
			return err
		}
		rep = buildReport(proj, actual)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// Repair overwrites a drifted aggregate with the values derived from records. It refuses
// when the derived points exceed a method's total.
func (s *Service) Repair(ctx context.Context, projectID, actorID string) (*Report, error) {
	var rep *Report
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		proj, actual, err := load(ctx, tx, projectID)
		if err != nil {
			return err
		}
		rep = buildReport(proj, actual)
		if rep.Consistent {
			return nil
		}

		var violations []project.Method
		for _, m := range project.Methods {
			if actual[m].Points > proj.Progress[m].TotalPoints {
				violations = append(violations, m)
			}
		}
		if len(violations) > 0 {
			return &progress.BoundsError{Methods: violations}
		}

		values := make(map[project.Method]Actual, len(project.Methods))
		for _, m := range project.Methods {
			values[m] = actual[m]
		}
		if err := tx.SetProgress(ctx, projectID, values); err != nil {
			return fmt.Errorf("repairing aggregate: %w", err)
		}
		rep.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rep.Repaired {
		s.logger.Warn("aggregate repaired", "project_id", projectID)
		if s.activities != nil {
			if err := s.activities.Log(ctx, &activity.ActivityEntry{
				ProjectID:    projectID,
				ActorID:      actorID,
				ActivityType: activity.TypeAggregateRepaired,
				Summary:      "Repaired project aggregate from daily progress",
				Details:      activity.EncodeDetails(rep.Methods),
			}); err != nil {
				s.logger.Warn("activity log failed", "type", activity.TypeAggregateRepaired, "project_id", projectID, "error", err)
			}
		}
	}
	return rep, nil
}

// CheckAll checks every project and returns the reports that were inconsistent. With
// repair set, each drifted project is repaired; a project whose repair fails is still
// reported. A project that cannot be checked is skipped and its error joined into the
// returned error, next to the reports of every other project.
func (s *Service) CheckAll(ctx context.Context, repair bool) ([]Report, error) {
	ids, err := s.store.ListProjectIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	var (
		drifted  []Report
		failures []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return drifted, errors.Join(append(failures, err)...)
		}
		rep, err := s.Check(ctx, id)
		if errors.Is(err, project.ErrProjectNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("aggregate check failed", "project_id", id, "error", err)
			failures = append(failures, fmt.Errorf("checking project %s: %w", id, err))
			continue
		}
		if rep.Consistent {
			continue
		}
		if repair {
			repaired, err := s.Repair(ctx, id, "")
			if err != nil {
				s.logger.Error("aggregate repair failed", "project_id", id, "error", err)
			} else {
				rep = repaired
			}
		}
		drifted = append(drifted, *rep)
	}
	return drifted, errors.Join(failures...)
}

func load(ctx context.Context, tx Tx, projectID string) (*project.Project, map[project.Method]Actual, error) {
	proj, err := tx.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, project.ErrProjectNotFound
		}
		return nil, nil, fmt.Errorf("getting project: %w", err)
	}
	actual, err := tx.Actuals(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("summing daily progress: %w", err)
	}
	return proj, actual, nil
}
