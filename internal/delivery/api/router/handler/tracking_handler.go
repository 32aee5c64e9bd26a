package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"darshan/internal/convergence"
	"darshan/internal/delivery/api/response"
	deliverycontext "darshan/internal/delivery/context"
	"darshan/internal/domain/entity"
	"darshan/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const streamHeartbeat = 15 * time.Second

// TrackingHandlerParams holds dependencies for TrackingHandler, injected by Fx.
type TrackingHandlerParams struct {
	fx.In

	BookingUC  usecase.BookingUsecase
	TrackingUC usecase.TrackingUsecase
	Sync       *convergence.Synchronizer
	Logger     *slog.Logger
}

// TrackingHandler serves live location reports and the requester's tracking view
type TrackingHandler struct {
	bookingAccess

	trackingUC usecase.TrackingUsecase
	sync       *convergence.Synchronizer
	logger     *slog.Logger
	heartbeat  time.Duration
}

// NewTrackingHandler is the constructor for TrackingHandler
func NewTrackingHandler(params TrackingHandlerParams) *TrackingHandler {
	return &TrackingHandler{
		bookingAccess: bookingAccess{bookingUC: params.BookingUC},
		trackingUC:    params.TrackingUC,
		sync:          params.Sync,
		logger:        params.Logger,
		heartbeat:     streamHeartbeat,
	}
}

// ReportLocationRequest represents a position fix from the provider's device
type ReportLocationRequest struct {
	Latitude         float64    `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude        float64    `json:"longitude" validate:"gte=-180,lte=180"`
	Speed            *float64   `json:"speed" validate:"omitempty,gte=0"`
	EstimatedArrival *time.Time `json:"estimated_arrival"`
}

// SetETARequest represents an ETA supplied by the provider or a routing collaborator
type SetETARequest struct {
	EstimatedArrival time.Time `json:"estimated_arrival" validate:"required"`
}

// AcceptedResponse tells the device whether its update was stored.
type AcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// ReportLocation stores the provider's latest position while the journey is active
func (h *TrackingHandler) ReportLocation(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyProvider)
	if !ok {
		return err
	}

	var req ReportLocationRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	accepted, err := h.trackingUC.ReportPosition(c.Request().Context(), booking.ID, &usecase.ReportPositionInput{
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		Speed:            req.Speed,
		EstimatedArrival: req.EstimatedArrival,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, AcceptedResponse{Accepted: accepted})
}

// SetEstimatedArrival updates the ETA shown to the requester
func (h *TrackingHandler) SetEstimatedArrival(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyProvider)
	if !ok {
		return err
	}

	var req SetETARequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	accepted, err := h.trackingUC.SetEstimatedArrival(c.Request().Context(), booking.ID, req.EstimatedArrival)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, AcceptedResponse{Accepted: accepted})
}

// GetTracking returns the current tracking status of a booking
func (h *TrackingHandler) GetTracking(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyRequester, usecase.PartyProvider, usecase.PartyAdmin)
	if !ok {
		return err
	}

	status, err := h.trackingUC.CurrentStatus(c.Request().Context(), booking.ID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, status)
}

// StreamTracking pushes the tracking status as server-sent events whenever it changes.
// The stream ends when the provider has arrived or the client goes away.
func (h *TrackingHandler) StreamTracking(c echo.Context) error {
	booking, _, ok, err := h.authorize(c, usecase.PartyRequester, usecase.PartyProvider, usecase.PartyAdmin)
	if !ok {
		return err
	}

	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	changed := make(chan struct{}, 1)
	sub := h.sync.Subscribe(usecase.TrackingViewKey(booking.ID), func(context.Context) error {
		select {
		case changed <- struct{}{}:
		default:
		}

		return nil
	})
	defer sub.Cancel()
	logger.Debug("Tracking stream opened",
		slog.String("booking_id", booking.ID.String()),
		slog.Int("watchers", h.sync.Subscribers(sub.Key())),
	)

	res := c.Response()
	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(res).SetWriteDeadline(time.Time{})
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		done, err := h.pushStatus(ctx, res, booking.ID)
		if err != nil {
			logger.Warn("Tracking stream ended", slog.String("booking_id", booking.ID.String()), slog.Any("error", err))

			return nil
		}
		if done {
			return nil
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				break wait
			case <-heartbeat.C:
				if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
					return nil
				}
				res.Flush()
			}
		}
	}
}

// pushStatus writes one status event and reports whether the journey is over.
func (h *TrackingHandler) pushStatus(ctx context.Context, res *echo.Response, bookingID uuid.UUID) (bool, error) {
	status, err := h.trackingUC.CurrentStatus(ctx, bookingID)
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return false, err
	}

	if _, err := fmt.Fprintf(res, "event: status\ndata: %s\n\n", payload); err != nil {
		return false, err
	}
	res.Flush()

	return status.Phase == entity.TrackingPhaseArrived, nil
}
