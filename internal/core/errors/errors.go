package errors

import (
	"errors"
	"net/http"

	"github.com/academy-lab/eventcal/internal/calendar"
)

const (
	HttpInternalError       = "internal_error"
	HttpInvalidRequestError = "invalid_request"
	HttpValidationError     = "validation_failed"
	HttpNotFoundError       = "not_found"
	HttpConflictError       = "conflict"
	HttpStoreError          = "store_unavailable"
)

// ErrorResponse is the error response body for every API error.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// FromDomain maps an engine error onto an HTTP status and response body, so
// handlers never inspect free-text error strings.
func FromDomain(err error) (int, ErrorResponse) {
	var verr *calendar.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, ErrorResponse{
			ErrorType: HttpValidationError,
			Message:   verr.Error(),
			Details:   verr.Details(),
		}
	}

	switch {
	case errors.Is(err, calendar.ErrNotFound),
		errors.Is(err, calendar.ErrOccurrenceNotFound),
		errors.Is(err, calendar.ErrTemplateNotFound):
		return http.StatusNotFound, ErrorResponse{
			ErrorType: HttpNotFoundError,
			Message:   err.Error(),
		}
	case errors.Is(err, calendar.ErrConflict), errors.Is(err, calendar.ErrAlreadyExists):
		return http.StatusConflict, ErrorResponse{
			ErrorType: HttpConflictError,
			Message:   err.Error(),
		}
	}

	var serr *calendar.StoreError
	if errors.As(err, &serr) {
		return http.StatusServiceUnavailable, ErrorResponse{
			ErrorType: HttpStoreError,
			Message:   "persistence temporarily unavailable",
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		ErrorType: HttpInternalError,
		Message:   "internal error",
	}
}
