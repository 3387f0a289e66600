package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/errs"
	"github.com/rpggio/fieldlog/internal/metrics"
)

// maxBodyBytes bounds upsert request bodies.
const maxBodyBytes = 1 << 20

type upsertBody struct {
	Notes string          `json:"notes" validate:"max=10000"`
	Items json.RawMessage `json:"items"`
}

// resultBody is the response of the ledger write and read routes.
type resultBody struct {
	Message string `json:"message,omitempty"`
	*progress.Result
}

func (s *Server) handleUpsertProgress(w http.ResponseWriter, r *http.Request) {
	var body upsertBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.failLedger(w, r, "upsert", errs.Invalid("invalid JSON body"))
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.failLedger(w, r, "upsert", errs.Invalid(err.Error()))
		return
	}

	res, err := s.progress.Upsert(r.Context(), progress.UpsertRequest{
		ProjectID:    chi.URLParam(r, "projectID"),
		ActorID:      actor(r),
		LocalDate:    chi.URLParam(r, "date"),
		Notes:        body.Notes,
		Items:        progress.DecodeItems(body.Items),
		ConfirmClear: r.URL.Query().Get("confirm") == "clear",
	})
	if err != nil {
		s.failLedger(w, r, "upsert", err)
		return
	}
	recordLedgerSuccess("upsert", res)
	writeJSON(w, http.StatusOK, resultBody{Message: "Daily progress saved", Result: res})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	res, err := s.progress.Get(r.Context(), progress.GetRequest{
		ProjectID: chi.URLParam(r, "projectID"),
		ActorID:   actor(r),
		LocalDate: chi.URLParam(r, "date"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultBody{Result: res})
}

func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	res, err := s.progress.Delete(r.Context(), progress.DeleteRequest{
		ProjectID: chi.URLParam(r, "projectID"),
		ActorID:   actor(r),
		LocalDate: chi.URLParam(r, "date"),
	})
	if err != nil {
		s.failLedger(w, r, "delete", err)
		return
	}
	recordLedgerSuccess("delete", res)
	writeJSON(w, http.StatusOK, resultBody{Message: "Daily progress deleted", Result: res})
}

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	result, err := s.progress.List(r.Context(), progress.ListRequest{
		ProjectID: chi.URLParam(r, "projectID"),
		ActorID:   actor(r),
		From:      q.Get("from"),
		To:        q.Get("to"),
		Author:    q.Get("author"),
		Page:      page,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchProgress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	results, err := s.progress.Search(r.Context(), progress.SearchRequest{
		ProjectID: chi.URLParam(r, "projectID"),
		Query:     q.Get("q"),
		Limit:     limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": results})
}

// failLedger counts a failed ledger write before rendering it.
func (s *Server) failLedger(w http.ResponseWriter, r *http.Request, op string, err error) {
	metrics.RecordLedgerOperation(op, string(errs.Classify(err).Code))
	s.fail(w, r, err)
}

func recordLedgerSuccess(op string, res *progress.Result) {
	metrics.RecordLedgerOperation(op, "ok")
	for _, m := range res.Recomputed {
		metrics.RecordMaxDepthRecompute(string(m))
	}
}
