package repository

import (
	"context"
	"errors"

	"darshan/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrLocationSampleNotFound is returned when no sample has been reported for a booking.
var ErrLocationSampleNotFound = errors.New("location sample not found")

// LocationSampleRepository keeps the latest location sample per booking.
type LocationSampleRepository interface {
	// SaveLatestSample replaces the sample stored for the booking.
	SaveLatestSample(ctx context.Context, sample *entity.LocationSample) error

	// FindLatestSample returns the latest sample for the booking.
	FindLatestSample(ctx context.Context, bookingID uuid.UUID) (*entity.LocationSample, error)

	// DeleteSample drops the sample once tracking ends.
	DeleteSample(ctx context.Context, bookingID uuid.UUID) error
}
