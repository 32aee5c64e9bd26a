// Package response writes the API's JSON envelopes: {data, meta} on success and
// {error, meta} on failure. meta.request_id always echoes the request's ID.
package response

import (
	"net/http"
	"strings"

	deliverycontext "darshan/internal/delivery/context"
	domainerrors "darshan/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type Meta struct {
	RequestID string `json:"request_id"`
}

type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type okEnvelope struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta"`
}

type errEnvelope struct {
	Error *Problem `json:"error"`
	Meta  *Meta    `json:"meta"`
}

func meta(c echo.Context) *Meta {
	return &Meta{RequestID: deliverycontext.GetRequestID(c)}
}

// Success writes data with the given status.
func Success(c echo.Context, status int, data any) error {
	return c.JSON(status, okEnvelope{Data: data, Meta: meta(c)})
}

// Error writes a failure envelope. Details never leave the server on 401, 403 or 5xx.
func Error(c echo.Context, status int, code, message string, details any) error {
	switch {
	case status >= http.StatusInternalServerError, status == http.StatusUnauthorized, status == http.StatusForbidden:
		details = nil
	}

	return c.JSON(status, errEnvelope{
		Error: &Problem{Code: code, Message: message, Details: details},
		Meta:  meta(c),
	})
}

func BadRequest(c echo.Context, code, message string) error {
	return Error(c, http.StatusBadRequest, code, message, nil)
}

func BadRequestWithDetails(c echo.Context, code, message string, details any) error {
	return Error(c, http.StatusBadRequest, code, message, details)
}

// BindingError reports a body or parameter that could not be decoded.
func BindingError(c echo.Context, code, message string) error {
	return BadRequest(c, code, message)
}

func Unauthorized(c echo.Context, code, message string) error {
	return Error(c, http.StatusUnauthorized, code, message, nil)
}

func Forbidden(c echo.Context, code, message string) error {
	return Error(c, http.StatusForbidden, code, message, nil)
}

func NotFound(c echo.Context, code, message string) error {
	return Error(c, http.StatusNotFound, code, message, nil)
}

func InternalServerError(c echo.Context, code, message string) error {
	return Error(c, http.StatusInternalServerError, code, message, nil)
}

// HandleAppError renders a domain error anywhere in err's chain. Anything else is
// returned with a stack so the central error handler logs it as a 500.
func HandleAppError(c echo.Context, err error) error {
	var appErr domainerrors.AppError
	if !errors.As(err, &appErr) {
		return errors.WithStack(err)
	}

	return Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), AppErrorDetails(err, appErr))
}

// AppErrorDetails returns the details of appErr, or the context a usecase wrapped around it.
func AppErrorDetails(err error, appErr domainerrors.AppError) any {
	if details := appErr.Details(); details != "" {
		return details
	}

	full := err.Error()
	wrapped, found := strings.CutSuffix(full, ": "+appErr.Error())
	if !found || wrapped == "" {
		return nil
	}

	return wrapped
}
