// Package errs classifies domain errors into the stable codes exposed by the HTTP API
// and the MCP tools.
package errs

import (
	"errors"
	"net/http"

	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/paging"
)

// Code is a stable, client facing error code.
type Code string

const (
	CodeInvalidInput         Code = "invalid_input"
	CodeUnauthenticated      Code = "unauthenticated"
	CodeNotFound             Code = "not_found"
	CodeOutOfRange           Code = "out_of_range"
	CodeConfirmationRequired Code = "confirmation_required"
	CodeBoundsViolation      Code = "bounds_violation"
	CodeConflict             Code = "conflict"
	CodeRateLimited          Code = "rate_limited"
	CodeInternal             Code = "internal"
)

// HTTPStatus is the response status used for the code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeOutOfRange, CodeBoundsViolation:
		return http.StatusUnprocessableEntity
	case CodeConfirmationRequired, CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error ready to be rendered.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Classify maps err onto its code. Unknown errors become CodeInternal with a generic
// message so that driver details never reach clients.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var bounds *progress.BoundsError
	switch {
	case errors.As(err, &bounds):
		methods := make([]string, len(bounds.Methods))
		for i, m := range bounds.Methods {
			methods[i] = string(m)
		}
		return &Error{Code: CodeBoundsViolation, Message: err.Error(), Details: map[string]any{"methods": methods}}
	case errors.Is(err, progress.ErrBoundsViolation):
		return &Error{Code: CodeBoundsViolation, Message: err.Error()}
	case errors.Is(err, employee.ErrUnauthenticated):
		return &Error{Code: CodeUnauthenticated, Message: err.Error()}
	case errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, progress.ErrRecordNotFound),
		errors.Is(err, employee.ErrEmployeeNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, progress.ErrOutOfRange):
		return &Error{Code: CodeOutOfRange, Message: err.Error()}
	case errors.Is(err, progress.ErrConfirmationRequired):
		return &Error{Code: CodeConfirmationRequired, Message: err.Error()}
	case errors.Is(err, progress.ErrConflict):
		return &Error{Code: CodeConflict, Message: err.Error(), Details: map[string]any{"retryable": true}}
	case errors.Is(err, progress.ErrInvalidInput),
		errors.Is(err, project.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput),
		errors.Is(err, paging.ErrInvalidMode),
		errors.Is(err, paging.ErrInvalidCursor):
		return &Error{Code: CodeInvalidInput, Message: err.Error()}
	default:
		return &Error{Code: CodeInternal, Message: "internal error"}
	}
}

// Invalid builds an invalid_input error with a custom message.
func Invalid(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

// Unauthenticated builds an unauthenticated error with a custom message.
func Unauthenticated(message string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message}
}
