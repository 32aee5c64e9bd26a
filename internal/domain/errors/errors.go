// Package errors defines the domain errors the API renders as {code, message, details}.
package errors

import (
	"net/http"

	"darshan/internal/errors"
)

// AppError is an error the delivery layer can render directly.
type AppError interface {
	error
	HTTPCode() int
	ErrorCode() string // stable machine-readable code
	Message() string   // safe to show to clients
	Details() string
}

// BaseError is a coded domain error. Copies made by WithDetails still match the
// original under errors.Is.
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{httpCode: httpCode, errorCode: errorCode, message: message, details: details}
}

func (e *BaseError) Error() string     { return e.message }
func (e *BaseError) HTTPCode() int     { return e.httpCode }
func (e *BaseError) ErrorCode() string { return e.errorCode }
func (e *BaseError) Message() string   { return e.message }
func (e *BaseError) Details() string   { return e.details }

// Is matches any BaseError with the same code.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)

	return ok && t.errorCode == e.errorCode
}

// WrapMessage prefixes e with context; the prefix becomes the response details.
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// WithDetails returns a copy of e carrying details.
func (e *BaseError) WithDetails(details string) *BaseError {
	c := *e
	c.details = details

	return &c
}

//nolint:gochecknoglobals
var (
	ErrValidationFailed = NewBaseError(http.StatusBadRequest, "VALIDATION_FAILED", "Input validation failed", "")
	ErrForbidden        = NewBaseError(http.StatusForbidden, "FORBIDDEN", "Access denied", "")

	ErrBookingNotFound  = NewBaseError(http.StatusNotFound, "BOOKING_NOT_FOUND", "Booking not found", "")
	ErrAccountNotFound  = NewBaseError(http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found", "")
	ErrProviderNotFound = NewBaseError(http.StatusNotFound, "PROVIDER_NOT_FOUND", "Provider not found", "")

	ErrInvalidTransition = NewBaseError(http.StatusConflict, "INVALID_TRANSITION",
		"The requested state change is not allowed", "")
	ErrConflict = NewBaseError(http.StatusConflict, "CONFLICT",
		"The resource was changed by another request, refetch and retry", "")
	ErrPaymentRequired = NewBaseError(http.StatusPaymentRequired, "PAYMENT_REQUIRED",
		"A successful payment is required to confirm this booking", "")

	// ErrPartialFailure rides on a successful result as a warning; it is never the operation error.
	ErrPartialFailure = NewBaseError(http.StatusMultiStatus, "PARTIAL_FAILURE",
		"The decision was saved but a dependent update failed", "")

	ErrTransientIO = NewBaseError(http.StatusServiceUnavailable, "TRANSIENT_IO",
		"A dependent service is temporarily unavailable", "")
	ErrTransactionFailed = NewBaseError(http.StatusInternalServerError, "TRANSACTION_FAILED",
		"Database transaction failed", "")
)

// DatabaseExecuteError is a store failure. It unwraps to the driver error.
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError wraps err; details names the statement that failed and stays in logs.
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{err: err, details: details}
}

func (e *DatabaseExecuteError) Error() string {
	return "database execution failed: " + e.err.Error()
}

func (e *DatabaseExecuteError) Unwrap() error     { return e.err }
func (e *DatabaseExecuteError) HTTPCode() int     { return http.StatusInternalServerError }
func (e *DatabaseExecuteError) ErrorCode() string { return "DATABASE_EXECUTE_FAILED" }
func (e *DatabaseExecuteError) Message() string   { return "Database execution failed" }
func (e *DatabaseExecuteError) Details() string   { return e.details }
