package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulexconde/surveyrun/internal/logging"
	"github.com/paulexconde/surveyrun/pkg/fault"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusOf maps the error taxonomy onto response codes.
func statusOf(k fault.Kind) int {
	switch k {
	case fault.KindMissingRequiredAnswer, fault.KindOutOfRangeAnswer:
		return http.StatusUnprocessableEntity
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindStructuralViolation, fault.KindSubmissionCompleted:
		return http.StatusConflict
	case fault.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError hides the message of internal errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := statusOf(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context(), logging.Discard()).ErrorContext(r.Context(), "request failed", "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Kind: kind.String(), Message: msg})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	err := fault.Invalid(format, args...)
	writeJSON(w, http.StatusBadRequest, errorBody{Kind: fault.KindInvalidInput.String(), Message: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Kind: fault.KindInvalidInput.String(), Message: err.Error()})
			return false
		}
		badRequest(w, "bad json: %v", err)
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
