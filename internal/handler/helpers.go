package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pterodactyl/panel/internal/config"
	"github.com/pterodactyl/panel/internal/model"
	"github.com/pterodactyl/panel/internal/server/middleware"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// writeList writes items in the standard list envelope.
func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: items,
		Meta:     &model.ResponseMeta{Count: len(items)},
	})
}

// writeStoreError maps the store's sentinel errors onto HTTP statuses.
// Response bodies carry a fixed message per sentinel; the error itself, which
// may hold driver text, only goes to the request log.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, config.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, config.ErrConflict):
		middleware.LoggerFrom(r.Context()).Info(fallbackMsg, "error", err)
		writeError(w, http.StatusConflict, fallbackMsg+": resource already exists")
	case errors.Is(err, config.ErrValidation):
		middleware.LoggerFrom(r.Context()).Info(fallbackMsg, "error", err)
		writeError(w, http.StatusUnprocessableEntity, fallbackMsg+": invalid input")
	default:
		middleware.LoggerFrom(r.Context()).Error(fallbackMsg, "error", err)
		writeError(w, http.StatusInternalServerError, fallbackMsg)
	}
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryBool extracts a boolean query parameter, returning defaultVal when it
// is missing or unrecognized.
func queryBool(r *http.Request, key string, defaultVal bool) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}
