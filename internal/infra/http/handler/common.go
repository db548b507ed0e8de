// Package handler contains the HTTP handlers for the REST API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	apihttp "github.com/sonartrack/api/internal/infra/http"
	"github.com/sonartrack/api/internal/infra/http/middleware"
	"github.com/sonartrack/api/pkg/apierror"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/validator"
)

// ListResponse represents a paginated list response.
type ListResponse[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes an API error with the request's correlation ID attached.
func writeError(w http.ResponseWriter, r *http.Request, err *apierror.Error) {
	err.WriteJSON(w, middleware.GetRequestID(r.Context()))
}

// handleValidationError converts validation failures into a 422 response
// with per-field details.
func handleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs validator.FieldErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field] = fe.Message
		}
		writeError(w, r, apierror.ValidationFailed("Validation failed", details))
		return
	}
	writeError(w, r, apierror.BadRequest(err.Error()))
}

// handleServiceError maps domain errors onto HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeError(w, r, apierror.NotFound(resource))
	case errors.Is(err, shared.ErrAlreadyExists):
		writeError(w, r, apierror.Conflict(resource+" already exists"))
	case errors.Is(err, shared.ErrConflict):
		writeError(w, r, apierror.Conflict(err.Error()))
	case errors.Is(err, shared.ErrValidation):
		writeError(w, r, apierror.BadRequest(err.Error()))
	default:
		writeError(w, r, apierror.FromError(err))
	}
}

// parseID parses a path parameter as a domain ID, writing a 400 on failure.
func parseID(w http.ResponseWriter, r *http.Request, name string) (shared.ID, bool) {
	id, err := shared.ParseID(apihttp.PathParam(r, name))
	if err != nil {
		writeError(w, r, apierror.BadRequest("Invalid "+name))
		return shared.ID{}, false
	}
	return id, true
}

// parseQueryArray parses a comma-separated query parameter into a string
// slice. Returns nil when empty.
func parseQueryArray(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// parseQueryInt parses a query parameter as an integer, falling back to
// defaultVal when empty or invalid.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}
