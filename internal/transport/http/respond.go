package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "fono/pkg/errors"
)

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Internal detail
// (wrapped causes, driver errors) stays in the server log; the response body
// only carries the short user-visible message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)

	var status int
	switch code {
	case apperrors.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case apperrors.CodeInvalidArgument, apperrors.CodeConflict:
		status = http.StatusBadRequest
	case apperrors.CodePermissionDenied:
		status = http.StatusForbidden
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	msg := "internal server error"
	var app *apperrors.AppError
	if status == http.StatusServiceUnavailable {
		msg = "service temporarily unavailable"
	} else if errors.As(err, &app) && status < http.StatusInternalServerError {
		msg = app.Message
	}

	if status >= http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}

	writeJSON(w, status, errorBody{Message: msg})
}
