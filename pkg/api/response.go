package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/notifyhub/pkg/notify"
)

// ErrorDetail carries error information inside an error response body.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type errorResponse struct {
	Error ErrorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses. Validation failures
// become 422 with per-field details, a lost write race becomes a
// retryable 409, an unreachable store becomes 503, everything else is a
// generic 500 that leaks no internals.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := ErrorDetail{
		Code:    "internal_error",
		Message: "internal server error",
	}

	var valErr notify.ValidationError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Message = "invalid request"
		if !valErr.IsEmpty() {
			detail.Details = valErr.Fields()
		}
	case errors.Is(err, notify.ErrWriteConflict):
		status = http.StatusConflict
		detail.Code = "write_conflict"
		detail.Message = "concurrent update, retry the request"
	case errors.Is(err, notify.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		detail.Code = "store_unavailable"
		detail.Message = "storage backend unavailable"
	}

	writeJSON(w, status, errorResponse{Error: detail})
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		verr := notify.NewValidationError()
		verr.Add("body", "malformed JSON payload")
		return verr
	}
	return nil
}
