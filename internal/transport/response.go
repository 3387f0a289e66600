package transport

import (
	"encoding/json"
	"net/http"

	"github.com/rpggio/fieldlog/internal/errs"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e *errs.Error) {
	writeJSON(w, e.Code.HTTPStatus(), e)
}
