package handler

import (
	"log/slog"
	"net/http"
	"time"

	"darshan/internal/delivery/api/middleware"
	"darshan/internal/delivery/api/response"
	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/service"
	"darshan/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// BookingHandlerParams holds dependencies for BookingHandler, injected by Fx.
type BookingHandlerParams struct {
	fx.In

	BookingUC       usecase.BookingUsecase
	PaymentVerifier service.PaymentVerifier
	QRCodeService   service.QRCodeService
	Logger          *slog.Logger
}

// BookingHandler holds dependencies for booking lifecycle handlers
type BookingHandler struct {
	bookingAccess

	bookingUC usecase.BookingUsecase
	payments  service.PaymentVerifier
	qrcodes   service.QRCodeService
	logger    *slog.Logger
}

// NewBookingHandler is the constructor for BookingHandler
func NewBookingHandler(params BookingHandlerParams) *BookingHandler {
	return &BookingHandler{
		bookingAccess: bookingAccess{bookingUC: params.BookingUC},
		bookingUC:     params.BookingUC,
		payments:      params.PaymentVerifier,
		qrcodes:       params.QRCodeService,
		logger:        params.Logger,
	}
}

// CreateBookingRequest represents the request body for creating a booking
type CreateBookingRequest struct {
	ProviderID  uuid.UUID `json:"provider_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Purpose     string    `json:"purpose" validate:"required,max=255"`
	Address     string    `json:"address" validate:"required,max=500"`
	Notes       string    `json:"notes" validate:"max=2000"`
	Price       *float64  `json:"price" validate:"omitempty,gte=0"`
	// PaymentRef is set when the requester paid up front; price must then be given.
	PaymentRef string `json:"payment_ref" validate:"omitempty,max=255"`
}

// TransitionRequest is the optional body of confirm, cancel and complete.
type TransitionRequest struct {
	ExpectedVersion *int64 `json:"expected_version" validate:"omitempty,gte=1"`
	PaymentRef      string `json:"payment_ref" validate:"omitempty,max=255"`
}

// CreateBooking handles booking creation by the authenticated requester
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	var req CreateBookingRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	input := &usecase.CreateBookingInput{
		RequesterID: userID,
		ProviderID:  req.ProviderID,
		ScheduledAt: req.ScheduledAt,
		Purpose:     req.Purpose,
		Address:     req.Address,
		Notes:       req.Notes,
		Price:       req.Price,
	}

	if req.PaymentRef != "" {
		if req.Price == nil {
			return response.BadRequestWithDetails(c, "VALIDATION_ERROR", "Request validation failed",
				map[string]string{"price": "required_with"})
		}

		outcome, err := h.payments.Verify(ctx, req.PaymentRef, *req.Price)
		if err != nil {
			return response.HandleAppError(c, err)
		}
		input.Payment = outcome
	}

	booking, err := h.bookingUC.Create(ctx, input)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, booking)
}

// ListMyBookings returns the bookings made by the authenticated requester
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	bookings, err := h.bookingUC.ListForRequester(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, bookings)
}

// ListProviderBookings returns the dashboard of the authenticated provider
func (h *BookingHandler) ListProviderBookings(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	bookings, err := h.bookingUC.ListForProvider(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, bookings)
}

// GetBooking returns one booking to either party or an admin
func (h *BookingHandler) GetBooking(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyRequester, usecase.PartyProvider, usecase.PartyAdmin)
	if !ok {
		return err
	}

	return response.Success(c, http.StatusOK, booking)
}

// ConfirmBooking confirms a pending booking, verifying the payment when one is given
func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyRequester, usecase.PartyAdmin)
	if !ok {
		return err
	}

	var req TransitionRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	var payment *service.PaymentOutcome
	if req.PaymentRef != "" {
		payment, err = h.payments.Verify(ctx, req.PaymentRef, booking.Price)
		if err != nil {
			return response.HandleAppError(c, err)
		}
	}

	updated, err := h.bookingUC.Confirm(ctx, booking.ID, payment, req.ExpectedVersion)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, updated)
}

// CancelBooking cancels a pending or confirmed booking
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyRequester, usecase.PartyProvider, usecase.PartyAdmin)
	if !ok {
		return err
	}

	var req TransitionRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	updated, err := h.bookingUC.Cancel(c.Request().Context(), booking.ID, req.ExpectedVersion)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, updated)
}

// CompleteBooking marks a confirmed booking as done
func (h *BookingHandler) CompleteBooking(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyProvider, usecase.PartyAdmin)
	if !ok {
		return err
	}

	var req TransitionRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	updated, err := h.bookingUC.Complete(c.Request().Context(), booking.ID, req.ExpectedVersion)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, updated)
}

// StartJourney is called by the provider when leaving for the booking
func (h *BookingHandler) StartJourney(c echo.Context) error {
	booking, userID, ok, err := h.authorize(c, usecase.PartyProvider)
	if !ok {
		return err
	}

	updated, err := h.bookingUC.StartJourney(c.Request().Context(), booking.ID, userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, updated)
}

// GetBookingPass renders the QR code the requester shows at check-in
func (h *BookingHandler) GetBookingPass(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyRequester)
	if !ok {
		return err
	}

	if booking.Status != entity.BookingStatusConfirmed {
		return response.HandleAppError(c, domainerrors.ErrInvalidTransition.WrapMessage("a pass is only issued for confirmed bookings"))
	}

	png, err := h.qrcodes.GenerateBookingPass(booking.ID, booking.Version)
	if err != nil {
		h.logger.Error("Failed to render booking pass", slog.String("booking_id", booking.ID.String()), slog.Any("error", err))

		return response.InternalServerError(c, "PASS_GENERATION_FAILED", "Failed to generate booking pass")
	}

	return c.Blob(http.StatusOK, "image/png", png)
}
