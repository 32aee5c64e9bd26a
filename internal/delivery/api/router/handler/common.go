package handler

import (
	"net/http"
	"slices"

	"darshan/internal/delivery/api/middleware"
	"darshan/internal/delivery/api/response"
	"darshan/internal/delivery/api/validator"
	"darshan/internal/domain/entity"
	"darshan/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}

// bindAndValidate binds the request body into req and runs struct validation,
// writing the error response itself. ok is false when the handler should return.
func bindAndValidate(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, response.BindingError(c, "INVALID_INPUT", "Malformed request body")
	}

	if err := c.Validate(req); err != nil {
		return false, response.BadRequestWithDetails(c, "VALIDATION_ERROR", "Request validation failed", validator.FieldErrors(err))
	}

	return true, nil
}

// pathID parses a uuid path parameter.
func pathID(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))

	return id, err == nil
}

// bookingAccess resolves the booking named in the path and the caller's relation to it.
type bookingAccess struct {
	bookingUC usecase.BookingUsecase
}

// authorize loads the booking and checks the caller is one of allowed.
// When ok is false the response has been written and err must be returned as is.
func (a bookingAccess) authorize(c echo.Context, allowed ...usecase.BookingParty) (booking *entity.Booking, userID uuid.UUID, ok bool, err error) {
	userID, found := middleware.GetUserID(c)
	if !found {
		return nil, uuid.Nil, false, response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	bookingID, found := pathID(c, "id")
	if !found {
		return nil, userID, false, response.BadRequest(c, "INVALID_ID", "Invalid booking ID")
	}

	ctx := c.Request().Context()
	booking, err = a.bookingUC.Get(ctx, bookingID)
	if err != nil {
		return nil, userID, false, response.HandleAppError(c, err)
	}

	party, err := a.bookingUC.Party(ctx, booking, userID, middleware.IsAdmin(c))
	if err != nil {
		return nil, userID, false, response.HandleAppError(c, err)
	}
	if party == usecase.PartyNone {
		return nil, userID, false, response.NotFound(c, "BOOKING_NOT_FOUND", "Booking not found")
	}
	if !slices.Contains(allowed, party) {
		return nil, userID, false, response.Forbidden(c, "FORBIDDEN", "Not allowed for this booking")
	}

	return booking, userID, true, nil
}
