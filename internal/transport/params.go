package transport

import (
	"net/http"
	"strconv"

	"github.com/rpggio/fieldlog/internal/errs"
	"github.com/rpggio/fieldlog/internal/paging"
)

// pageParams reads mode, page, limit and cursor from the query string.
func pageParams(r *http.Request) (paging.Params, error) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		return paging.Params{}, err
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return paging.Params{}, err
	}
	return paging.Params{
		Mode:   paging.Mode(q.Get("mode")),
		Page:   page,
		Limit:  limit,
		Cursor: q.Get("cursor"),
	}, nil
}

// intParam parses an optional non-negative integer parameter.
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Invalid(name + " must be a non-negative integer")
	}
	return n, nil
}
