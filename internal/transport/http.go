package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/domain/reconcile"
	"github.com/rpggio/fieldlog/internal/errs"
	"github.com/rpggio/fieldlog/internal/paging"
)

// ProjectService manages project aggregates.
type ProjectService interface {
	Create(ctx context.Context, req project.CreateRequest) (*project.Detail, error)
	Get(ctx context.Context, id string) (*project.Detail, error)
	List(ctx context.Context, req project.ListRequest) (*paging.Result[project.Detail], error)
	UpdateTotals(ctx context.Context, req project.UpdateTotalsRequest) (*project.Detail, error)
}

// ProgressService is the daily progress ledger.
type ProgressService interface {
	Upsert(ctx context.Context, req progress.UpsertRequest) (*progress.Result, error)
	Get(ctx context.Context, req progress.GetRequest) (*progress.Result, error)
	Delete(ctx context.Context, req progress.DeleteRequest) (*progress.Result, error)
	List(ctx context.Context, req progress.ListRequest) (*paging.Result[progress.Record], error)
	Search(ctx context.Context, req progress.SearchRequest) ([]progress.SearchResult, error)
}

// ActivityService reads the activity log.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// ReconcileService checks and repairs project aggregates.
type ReconcileService interface {
	Check(ctx context.Context, projectID string) (*reconcile.Report, error)
	Repair(ctx context.Context, projectID, actorID string) (*reconcile.Report, error)
}

// Config wires the HTTP server.
type Config struct {
	Projects  ProjectService
	Progress  ProgressService
	Activity  ActivityService
	Reconcile ReconcileService

	// Auth guards /api and /mcp. Nil leaves them open.
	Auth func(http.Handler) http.Handler
	// AdminSecret guards /admin; empty rejects every admin request.
	AdminSecret string
	// MCP is mounted at /mcp when set.
	MCP http.Handler

	Secure      func(http.Handler) http.Handler
	IPRateLimit func(http.Handler) http.Handler
	Logger      *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	projects  ProjectService
	progress  ProgressService
	activity  ActivityService
	reconcile ReconcileService
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{
		projects:  cfg.Projects,
		progress:  cfg.Progress,
		activity:  cfg.Activity,
		reconcile: cfg.Reconcile,
		validate:  validator.New(),
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(Prometheus)
	if cfg.Secure != nil {
		r.Use(cfg.Secure)
	}
	if cfg.IPRateLimit != nil {
		r.Use(cfg.IPRateLimit)
	}

	r.Get("/health", srv.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}

		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", srv.handleListProjects)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", srv.handleGetProject)
				r.Get("/activity", srv.handleListActivity)
				r.Route("/daily-progress", func(r chi.Router) {
					r.Get("/", srv.handleListProgress)
					r.Get("/search", srv.handleSearchProgress)
					r.Get("/{date}", srv.handleGetProgress)
					r.Put("/{date}", srv.handleUpsertProgress)
					r.Delete("/{date}", srv.handleDeleteProgress)
				})
			})
		})

		if cfg.MCP != nil {
			r.Handle("/mcp", cfg.MCP)
		}
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdminSecret(cfg.AdminSecret))
		r.Post("/projects", srv.handleCreateProject)
		r.Patch("/projects/{projectID}/totals", srv.handleUpdateTotals)
		r.Get("/projects/{projectID}/reconcile", srv.handleCheckProject)
		r.Post("/projects/{projectID}/reconcile", srv.handleRepairProject)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, &errs.Error{Code: errs.CodeNotFound, Message: "route not found"})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail renders err, logging it when it is not a client error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := errs.Classify(err)
	if e.Code == errs.CodeInternal {
		s.logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, e)
}

// actor returns the authenticated actor, or "" when the route runs unauthenticated.
func actor(r *http.Request) string {
	actorID, _ := ActorFromContext(r.Context())
	return actorID
}
