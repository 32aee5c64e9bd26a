package usecase

import (
	"context"
	"time"

	"darshan/internal/domain/entity"

	"github.com/google/uuid"
)

// ReportPositionInput represents a position fix sent by the provider's device
type ReportPositionInput struct {
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Speed            *float64   `json:"speed,omitempty"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
}

// TrackingViewKey is the synchronizer key live tracking streams subscribe to.
func TrackingViewKey(bookingID uuid.UUID) string { return "tracking:" + bookingID.String() }

// TrackingUsecase defines the live location operations of a booking in progress.
type TrackingUsecase interface {
	// ReportPosition stores the fix and returns true, or returns false without writing
	// unless the booking is confirmed and the journey has started.
	ReportPosition(ctx context.Context, bookingID uuid.UUID, input *ReportPositionInput) (bool, error)

	// SetEstimatedArrival updates the ETA on the latest sample; same gating as ReportPosition.
	SetEstimatedArrival(ctx context.Context, bookingID uuid.UUID, at time.Time) (bool, error)

	CurrentStatus(ctx context.Context, bookingID uuid.UUID) (*entity.TrackingStatus, error)
}
