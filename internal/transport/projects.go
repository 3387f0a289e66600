package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/errs"
)

// adminActor is the actor id recorded for admin route changes.
const adminActor = "admin"

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.projects.List(r.Context(), project.ListRequest{
		Search: r.URL.Query().Get("search"),
		Client: r.URL.Query().Get("client"),
		Page:   page,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	detail, err := s.projects.Get(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if _, err := s.projects.Get(r.Context(), projectID); err != nil {
		s.fail(w, r, err)
		return
	}

	opts := activity.ListActivityOptions{ProjectID: projectID, Limit: limit, Offset: offset}
	if kind := q.Get("type"); kind != "" {
		t := activity.ActivityType(kind)
		opts.ActivityType = &t
	}
	entries, err := s.activity.GetRecentActivity(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

type createProjectBody struct {
	ID        string           `json:"id" validate:"omitempty,max=64"`
	Name      string           `json:"name" validate:"required,max=200"`
	Location  string           `json:"location" validate:"max=200"`
	Client    string           `json:"client" validate:"max=200"`
	StartDate string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   *string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Totals    map[string]int64 `json:"totals" validate:"dive,gte=0"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body createProjectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, errs.Invalid("invalid JSON body"))
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.fail(w, r, errs.Invalid(err.Error()))
		return
	}

	detail, err := s.projects.Create(r.Context(), project.CreateRequest{
		ID:        body.ID,
		ActorID:   adminActor,
		Name:      body.Name,
		Location:  body.Location,
		Client:    body.Client,
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Totals:    methodTotals(body.Totals),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

type updateTotalsBody struct {
	Totals map[string]int64 `json:"totals" validate:"required,min=1,dive,gte=0"`
}

func (s *Server) handleUpdateTotals(w http.ResponseWriter, r *http.Request) {
	var body updateTotalsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, errs.Invalid("invalid JSON body"))
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.fail(w, r, errs.Invalid(err.Error()))
		return
	}

	detail, err := s.projects.UpdateTotals(r.Context(), project.UpdateTotalsRequest{
		ID:      chi.URLParam(r, "projectID"),
		ActorID: adminActor,
		Totals:  methodTotals(body.Totals),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCheckProject(w http.ResponseWriter, r *http.Request) {
	report, err := s.reconcile.Check(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRepairProject(w http.ResponseWriter, r *http.Request) {
	report, err := s.reconcile.Repair(r.Context(), chi.URLParam(r, "projectID"), adminActor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func methodTotals(in map[string]int64) map[project.Method]int64 {
	if in == nil {
		return nil
	}
	out := make(map[project.Method]int64, len(in))
	for k, v := range in {
		out[project.Method(k)] = v
	}
	return out
}
