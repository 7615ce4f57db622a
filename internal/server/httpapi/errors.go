package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dotkom/vengeful/internal/common"
)

// statusFromError maps the service error taxonomy to HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrMissingAuthorization),
		errors.Is(err, common.ErrInvalidAccessToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrConflict):
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

func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)

	detail := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak internals to the caller.
		detail = "internal server error"
	}

	writeJSON(w, status, map[string]string{"detail": detail})
}
