package apperror

import (
	"errors"
	"net/http"
)

// Error is a typed application error carrying a taxonomy code, a safe
// client-facing message, the HTTP status it maps to, and an optional
// wrapped internal cause that is never written to the client.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Internal   error
	Retryable  bool
	Details    []string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Taxonomy from the ingest protocol's error handling design: InvalidArgument,
// NotFound, Conflict, FailedPrecondition, IntegrityError, InvalidContent,
// DataLoss, Internal.
var (
	ErrInvalidArgument = &Error{
		Code:       "invalid_argument",
		Message:    "The request is invalid",
		StatusCode: http.StatusBadRequest,
	}

	ErrNotFound = &Error{
		Code:       "not_found",
		Message:    "The requested upload session was not found",
		StatusCode: http.StatusNotFound,
	}

	ErrConflict = &Error{
		Code:       "conflict",
		Message:    "The operation is incompatible with the session's current state",
		StatusCode: http.StatusBadRequest,
	}

	ErrFailedPrecondition = &Error{
		Code:       "failed_precondition",
		Message:    "Not all chunks have been received",
		StatusCode: http.StatusBadRequest,
	}

	ErrIntegrity = &Error{
		Code:       "integrity_error",
		Message:    "The reassembled file does not match the declared digest",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidContent = &Error{
		Code:       "invalid_content",
		Message:    "The file content does not match the declared media type",
		StatusCode: http.StatusBadRequest,
	}

	ErrDataLoss = &Error{
		Code:       "data_loss",
		Message:    "A staged chunk is missing; the upload cannot be finalised",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternal = &Error{
		Code:       "internal_error",
		Message:    "An unexpected error occurred. Please try again later",
		StatusCode: http.StatusInternalServerError,
	}
)

func New(code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Wrap(err error, appErr *Error) *Error {
	return &Error{
		Code:       appErr.Code,
		Message:    appErr.Message,
		StatusCode: appErr.StatusCode,
		Internal:   err,
	}
}

func WrapWithMessage(err error, code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func SafeMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal.Code
}

// IsRetryable returns whether the error indicates the operation can be retried.
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return true
}

// WithRetryable creates a new error with the retryable flag set.
func WithRetryable(err *Error, retryable bool) *Error {
	return &Error{
		Code:       err.Code,
		Message:    err.Message,
		StatusCode: err.StatusCode,
		Internal:   err.Internal,
		Retryable:  retryable,
	}
}

// WithDetails attaches per-field validation details to a copy of the error.
func WithDetails(err *Error, details []string) *Error {
	return &Error{
		Code:       err.Code,
		Message:    err.Message,
		StatusCode: err.StatusCode,
		Internal:   err.Internal,
		Retryable:  err.Retryable,
		Details:    details,
	}
}
